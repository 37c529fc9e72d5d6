package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"socialnet/internal/domain"
	"socialnet/internal/middleware"
	"socialnet/internal/service/post"
)

type PostHandler struct {
	postService post.Service
}

func NewPostHandler(postService post.Service) *PostHandler {
	return &PostHandler{postService: postService}
}

func (h *PostHandler) Create(c *fiber.Ctx) error {
	userID, err := middleware.GetUserUUID(c)
	if err != nil {
		return err
	}

	var input domain.CreatePostInput
	if err := c.BodyParser(&input); err != nil {
		return middleware.BadRequest("errors.invalid_body")
	}

	p, err := h.postService.CreatePost(c.UserContext(), userID, input)
	if err != nil {
		return postError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *PostHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("postId"))
	if err != nil {
		return middleware.BadRequest("errors.invalid_post_id")
	}

	p, err := h.postService.GetPost(c.UserContext(), id)
	if err != nil {
		return postError(err)
	}

	return c.Status(fiber.StatusOK).JSON(p)
}

func (h *PostHandler) ListMine(c *fiber.Ctx) error {
	userID, err := middleware.GetUserUUID(c)
	if err != nil {
		return err
	}

	result, err := h.postService.ListByUser(c.UserContext(), userID, getPaginationParams(c))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *PostHandler) CreateComment(c *fiber.Ctx) error {
	userID, err := middleware.GetUserUUID(c)
	if err != nil {
		return err
	}

	var input domain.CreateCommentInput
	if err := c.BodyParser(&input); err != nil {
		return middleware.BadRequest("errors.invalid_body")
	}

	comment, err := h.postService.CreateComment(c.UserContext(), userID, input)
	if err != nil {
		return postError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(comment)
}

func (h *PostHandler) GetComment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("commentId"))
	if err != nil {
		return middleware.BadRequest("errors.invalid_comment_id")
	}

	comment, err := h.postService.GetComment(c.UserContext(), id)
	if err != nil {
		return postError(err)
	}

	return c.Status(fiber.StatusOK).JSON(comment)
}

func postError(err error) error {
	switch {
	case errors.Is(err, post.ErrParamsMissing), errors.Is(err, post.ErrParentMismatch):
		return middleware.BadRequest(err.Error())
	case errors.Is(err, post.ErrPostNotFound), errors.Is(err, post.ErrCommentNotFound):
		return middleware.NotFound(err.Error())
	}
	return err
}
