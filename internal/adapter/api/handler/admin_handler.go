package handler

import (
	"github.com/labstack/echo/v4"

	"pasarmarket/internal/usecase"
	"pasarmarket/pkg/response"
)

// AdminHandler serves the operator-only routes.
type AdminHandler struct {
	ledgerUseCase *usecase.LedgerUseCase
	escrowUseCase *usecase.EscrowUseCase
}

func NewAdminHandler(ledgerUseCase *usecase.LedgerUseCase, escrowUseCase *usecase.EscrowUseCase) *AdminHandler {
	return &AdminHandler{
		ledgerUseCase: ledgerUseCase,
		escrowUseCase: escrowUseCase,
	}
}

type rejectWithdrawalRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// ReconcileWallet returns the report even when the wallet was found
// inconsistent, alongside the integrity error code.
func (h *AdminHandler) ReconcileWallet(c echo.Context) error {
	report, err := h.ledgerUseCase.Reconcile(c.Request().Context(), c.Param("accountId"))
	if err != nil {
		if report != nil {
			return response.ErrorWithData(c, err, report)
		}
		return response.Error(c, err)
	}
	return response.Success(c, report)
}

func (h *AdminHandler) CompleteWithdrawal(c echo.Context) error {
	operatorID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}

	withdrawal, err := h.ledgerUseCase.CompleteWithdrawal(c.Request().Context(), c.Param("id"), operatorID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, withdrawal)
}

func (h *AdminHandler) RejectWithdrawal(c echo.Context) error {
	operatorID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req rejectWithdrawalRequest
	if err := bindAndValidate(c, &req); err != nil {
		return response.Error(c, err)
	}

	withdrawal, err := h.ledgerUseCase.RejectWithdrawal(c.Request().Context(), c.Param("id"), operatorID, req.Reason)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, withdrawal)
}

func (h *AdminHandler) SweepEscrow(c echo.Context) error {
	result, err := h.escrowUseCase.SweepExpired(c.Request().Context())
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, result)
}

func (h *AdminHandler) FreezeFunds(c echo.Context) error {
	var req amountRequest
	if err := bindAndValidate(c, &req); err != nil {
		return response.Error(c, err)
	}

	wallet, err := h.ledgerUseCase.FreezeFunds(c.Request().Context(), c.Param("accountId"), req.Amount)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, wallet)
}

func (h *AdminHandler) UnfreezeFunds(c echo.Context) error {
	var req amountRequest
	if err := bindAndValidate(c, &req); err != nil {
		return response.Error(c, err)
	}

	wallet, err := h.ledgerUseCase.UnfreezeFunds(c.Request().Context(), c.Param("accountId"), req.Amount)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, wallet)
}
