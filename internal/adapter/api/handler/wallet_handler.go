package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"pasarmarket/internal/usecase"
	"pasarmarket/pkg/errors"
	"pasarmarket/pkg/response"
	"pasarmarket/pkg/utils"
)

type WalletHandler struct {
	ledgerUseCase *usecase.LedgerUseCase
}

func NewWalletHandler(ledgerUseCase *usecase.LedgerUseCase) *WalletHandler {
	return &WalletHandler{
		ledgerUseCase: ledgerUseCase,
	}
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *WalletHandler) GetWallet(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}

	wallet, err := h.ledgerUseCase.GetWallet(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, wallet)
}

func (h *WalletHandler) ListEntries(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}
	pagination := utils.GetPaginationParams(c)

	entries, err := h.ledgerUseCase.ListEntries(c.Request().Context(), userID, pagination.Page, pagination.PageSize)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, entries)
}

func (h *WalletHandler) RequestWithdrawal(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req amountRequest
	if err := bindAndValidate(c, &req); err != nil {
		return response.Error(c, err)
	}

	withdrawal, err := h.ledgerUseCase.RequestWithdrawal(c.Request().Context(), userID, req.Amount)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, withdrawal)
}

func (h *WalletHandler) ListWithdrawals(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}
	pagination := utils.GetPaginationParams(c)

	withdrawals, err := h.ledgerUseCase.ListWithdrawals(c.Request().Context(), userID, pagination.Page, pagination.PageSize)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, withdrawals)
}

func (h *WalletHandler) GetWithdrawal(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}

	withdrawal, err := h.ledgerUseCase.GetWithdrawal(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	if withdrawal.AccountID != userID {
		return response.Error(c, errors.NotFound("withdrawal", nil))
	}
	return response.Success(c, withdrawal)
}
