package handler

import (
	"github.com/labstack/echo/v4"

	"pasarmarket/internal/usecase"
	"pasarmarket/pkg/response"
	"pasarmarket/pkg/utils"
)

type OrderHandler struct {
	orderUseCase *usecase.OrderUseCase
}

func NewOrderHandler(orderUseCase *usecase.OrderUseCase) *OrderHandler {
	return &OrderHandler{
		orderUseCase: orderUseCase,
	}
}

type purchaseRequest struct {
	Quantity      int    `json:"quantity" validate:"required,min=1"`
	PaymentMethod string `json:"payment_method" validate:"required"`
}

// Purchase reserves stock, captures payment and opens escrow for the listing in the path.
func (h *OrderHandler) Purchase(c echo.Context) error {
	buyerID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req purchaseRequest
	if err := bindAndValidate(c, &req); err != nil {
		return response.Error(c, err)
	}

	detail, err := h.orderUseCase.CreateOrder(c.Request().Context(), buyerID, usecase.CreateOrderInput{
		ListingID:     c.Param("id"),
		Quantity:      req.Quantity,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, detail)
}

// ListTransactions lists the caller's orders; ?role=buyer|seller narrows the side.
func (h *OrderHandler) ListTransactions(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}
	pagination := utils.GetPaginationParams(c)

	orders, total, err := h.orderUseCase.ListOrders(c.Request().Context(), userID, c.QueryParam("role"), pagination.Page, pagination.PageSize)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, orders, total, pagination.Page, pagination.PageSize)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}

	detail, err := h.orderUseCase.GetOrder(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, detail)
}

func (h *OrderHandler) CancelOrder(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req usecase.CancelOrderInput
	if err := bindAndValidate(c, &req); err != nil {
		return response.Error(c, err)
	}

	detail, err := h.orderUseCase.CancelOrder(c.Request().Context(), c.Param("id"), userID, req)
	if err != nil {
		return response.Error(c, err)
	}
	return response.SuccessWithMessage(c, detail, "Order cancelled")
}
