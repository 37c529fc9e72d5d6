package handler

import (
	"github.com/gofiber/fiber/v2"

	"socialnet/internal/domain"
)

func getPaginationParams(c *fiber.Ctx) domain.PaginationParams {
	params := domain.DefaultPagination()

	if page := c.QueryInt("page", 1); page > 0 {
		params.Page = page
	}
	if pageSize := c.QueryInt("page_size", params.PageSize); pageSize > 0 {
		params.PageSize = pageSize
	}

	params.Validate()
	return params
}
