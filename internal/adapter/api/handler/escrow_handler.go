package handler

import (
	"github.com/labstack/echo/v4"

	"pasarmarket/internal/domain/entity"
	"pasarmarket/internal/usecase"
	"pasarmarket/pkg/response"
)

type EscrowHandler struct {
	escrowUseCase *usecase.EscrowUseCase
}

func NewEscrowHandler(escrowUseCase *usecase.EscrowUseCase) *EscrowHandler {
	return &EscrowHandler{
		escrowUseCase: escrowUseCase,
	}
}

type disputeRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

func confirmMessage(session *entity.EscrowSession) string {
	switch session.State {
	case entity.EscrowStateSettled:
		return "Escrow settled. Funds released to seller."
	case entity.EscrowStateSellerConfirmed:
		return "Seller confirmed. Waiting for buyer."
	case entity.EscrowStateBuyerConfirmed:
		return "Buyer confirmed. Waiting for seller."
	default:
		return "Confirmation recorded"
	}
}

// SellerConfirm - seller marks the order as delivered
func (h *EscrowHandler) SellerConfirm(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}

	session, err := h.escrowUseCase.ConfirmBySeller(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.SuccessWithMessage(c, session, confirmMessage(session))
}

// BuyerConfirm - buyer accepts the delivery
func (h *EscrowHandler) BuyerConfirm(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}

	session, err := h.escrowUseCase.ConfirmByBuyer(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.SuccessWithMessage(c, session, confirmMessage(session))
}

func (h *EscrowHandler) OpenDispute(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req disputeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return response.Error(c, err)
	}

	session, err := h.escrowUseCase.OpenDispute(c.Request().Context(), c.Param("id"), userID, req.Reason)
	if err != nil {
		return response.Error(c, err)
	}
	return response.SuccessWithMessage(c, session, "Dispute opened. Funds stay locked until an operator resolves it.")
}

func (h *EscrowHandler) ListEvents(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}

	events, err := h.escrowUseCase.ListEvents(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, events)
}
