package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"socialnet/internal/config"
	"socialnet/internal/domain"
	"socialnet/internal/middleware"
	"socialnet/internal/service/auth"
)

type AuthHandler struct {
	authService auth.Service
	cfg         *config.Config
}

func NewAuthHandler(authService auth.Service, cfg *config.Config) *AuthHandler {
	return &AuthHandler{authService: authService, cfg: cfg}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var input domain.CreateUserInput
	if err := c.BodyParser(&input); err != nil {
		return middleware.BadRequest("errors.invalid_body")
	}

	user, err := h.authService.Register(c.UserContext(), input)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrParamsMissing), errors.Is(err, auth.ErrInvalidEmailFormat):
			return middleware.BadRequest(err.Error())
		case errors.Is(err, auth.ErrEmailExists):
			return middleware.Conflict(err.Error())
		}
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":    user,
		"message": "auth.registered",
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input domain.LoginInput
	if err := c.BodyParser(&input); err != nil {
		return middleware.BadRequest("errors.invalid_body")
	}

	res, err := h.authService.Login(c.UserContext(), input)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrParamsMissing):
			return middleware.BadRequest(err.Error())
		case errors.Is(err, auth.ErrInvalidCredentials):
			return middleware.Unauthorized(err.Error())
		}
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.SessionCookieName,
		Value:    res.SessionToken,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(h.cfg.SessionTTL),
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"user":         res.User,
		"token":        res.Tokens.AccessToken,
		"refreshToken": res.Tokens.RefreshToken,
		"expiresIn":    res.Tokens.ExpiresIn,
	})
}

func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var input domain.RefreshInput
	if err := c.BodyParser(&input); err != nil {
		return middleware.BadRequest("errors.invalid_body")
	}

	tokens, err := h.authService.RefreshToken(c.UserContext(), input.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrParamsMissing):
			return middleware.BadRequest(err.Error())
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUserNotFound):
			return middleware.Unauthorized(err.Error())
		}
		return err
	}

	return c.Status(fiber.StatusOK).JSON(tokens)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token := middleware.SessionToken(c, h.cfg.SessionCookieName)
	if token != "" {
		if err := h.authService.Logout(c.UserContext(), token); err != nil {
			return err
		}
	}

	c.ClearCookie(h.cfg.SessionCookieName)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "auth.logged_out"})
}

func (h *AuthHandler) GetProfile(c *fiber.Ctx) error {
	user, err := h.authService.GetProfile(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return middleware.NotFound(err.Error())
		}
		return err
	}

	return c.Status(fiber.StatusOK).JSON(user)
}
