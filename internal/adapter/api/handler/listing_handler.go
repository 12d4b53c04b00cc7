package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"pasarmarket/internal/usecase"
	"pasarmarket/pkg/errors"
	"pasarmarket/pkg/response"
	"pasarmarket/pkg/utils"
)

type ListingHandler struct {
	listingUseCase *usecase.ListingUseCase
}

func NewListingHandler(listingUseCase *usecase.ListingUseCase) *ListingHandler {
	return &ListingHandler{
		listingUseCase: listingUseCase,
	}
}

type relistRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

func parsePriceParam(c echo.Context, name string) (*decimal.Decimal, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, errors.InvalidArgument(name+" must be a decimal number", err)
	}
	return &value, nil
}

func (h *ListingHandler) ListProducts(c echo.Context) error {
	minPrice, err := parsePriceParam(c, "minPrice")
	if err != nil {
		return response.Error(c, err)
	}
	maxPrice, err := parsePriceParam(c, "maxPrice")
	if err != nil {
		return response.Error(c, err)
	}
	pagination := utils.GetPaginationParams(c)

	items, total, err := h.listingUseCase.ListListings(c.Request().Context(), usecase.ListingQuery{
		Keyword:    c.QueryParam("keyword"),
		CategoryID: c.QueryParam("categoryId"),
		MinPrice:   minPrice,
		MaxPrice:   maxPrice,
		Page:       pagination.Page,
		PageSize:   pagination.PageSize,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, items, total, pagination.Page, pagination.PageSize)
}

func (h *ListingHandler) GetProduct(c echo.Context) error {
	listing, err := h.listingUseCase.GetListing(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, listing)
}

func (h *ListingHandler) CreateProduct(c echo.Context) error {
	sellerID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req usecase.CreateListingInput
	if err := bindAndValidate(c, &req); err != nil {
		return response.Error(c, err)
	}

	listing, err := h.listingUseCase.CreateListing(c.Request().Context(), sellerID, req)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, listing)
}

func (h *ListingHandler) UpdateProduct(c echo.Context) error {
	sellerID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req usecase.UpdateListingInput
	if err := bindAndValidate(c, &req); err != nil {
		return response.Error(c, err)
	}

	listing, err := h.listingUseCase.UpdateListing(c.Request().Context(), c.Param("id"), sellerID, req)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, listing)
}

func (h *ListingHandler) DeleteProduct(c echo.Context) error {
	sellerID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}

	listing, err := h.listingUseCase.RemoveListing(c.Request().Context(), c.Param("id"), sellerID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.SuccessWithMessage(c, listing, "Product removed")
}

func (h *ListingHandler) RelistProduct(c echo.Context) error {
	sellerID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req relistRequest
	if err := bindAndValidate(c, &req); err != nil {
		return response.Error(c, err)
	}

	listing, err := h.listingUseCase.Relist(c.Request().Context(), c.Param("id"), sellerID, req.Quantity)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, listing)
}

func (h *ListingHandler) ListMyProducts(c echo.Context) error {
	sellerID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}
	pagination := utils.GetPaginationParams(c)

	items, total, err := h.listingUseCase.ListBySeller(c.Request().Context(), sellerID, pagination.Page, pagination.PageSize)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, items, total, pagination.Page, pagination.PageSize)
}
