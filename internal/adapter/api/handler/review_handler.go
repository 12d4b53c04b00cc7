package handler

import (
	"github.com/labstack/echo/v4"

	"pasarmarket/internal/usecase"
	"pasarmarket/pkg/response"
)

type ReviewHandler struct {
	reviewUseCase *usecase.ReviewUseCase
}

func NewReviewHandler(reviewUseCase *usecase.ReviewUseCase) *ReviewHandler {
	return &ReviewHandler{
		reviewUseCase: reviewUseCase,
	}
}

func (h *ReviewHandler) SubmitReview(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req usecase.SubmitReviewInput
	if err := bindAndValidate(c, &req); err != nil {
		return response.Error(c, err)
	}

	review, err := h.reviewUseCase.SubmitReview(c.Request().Context(), c.Param("id"), userID, req)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, review)
}

func (h *ReviewHandler) GetReview(c echo.Context) error {
	review, err := h.reviewUseCase.GetReview(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, review)
}
