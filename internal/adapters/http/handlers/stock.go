package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/stockquote-service/internal/adapters/http/dto"
	"github.com/jsamuelsen/stockquote-service/internal/app"
)

// StockHandler handles stock quote HTTP endpoints.
type StockHandler struct {
	service *app.QuoteService
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(service *app.QuoteService) *StockHandler {
	return &StockHandler{
		service: service,
	}
}

// GetStock handles GET /api/v1/stocks/:symbol
// Returns the composite quote for one symbol, optionally for a past trading date.
//
// @Summary Get a stock quote
// @Description Returns daily prices, competitors and performance for a symbol
// @Tags stocks
// @Produce json
// @Param symbol path string true "Ticker symbol"
// @Param date query string false "Trading date (YYYY-MM-DD), latest session when omitted"
// @Success 200 {object} dto.QuoteResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/v1/stocks/{symbol} [get]
func (h *StockHandler) GetStock(c *gin.Context) {
	var query dto.QuoteQuery
	if !bindQuery(c, &query) {
		return
	}

	date, err := query.QuoteDate()
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	quote, err := h.service.GetQuote(c.Request.Context(), c.Param("symbol"), date)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(quote))
}

// GetStocks handles GET /api/v1/stocks?symbols=A,B
// Each symbol gets its own status so one bad ticker does not fail the batch.
//
// @Summary Get several stock quotes
// @Tags stocks
// @Produce json
// @Param symbols query string true "Comma separated ticker symbols"
// @Param date query string false "Trading date (YYYY-MM-DD)"
// @Success 200 {object} dto.BatchQuoteResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/stocks [get]
func (h *StockHandler) GetStocks(c *gin.Context) {
	var query dto.BatchQuoteQuery
	if !bindQuery(c, &query) {
		return
	}

	date, err := query.QuoteDate()
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	results, err := h.service.GetQuotes(c.Request.Context(), query.SymbolList(), date)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	resp := dto.BatchQuoteResponse{Results: make([]dto.BatchQuoteItem, 0, len(results))}

	for _, r := range results {
		item := dto.BatchQuoteItem{Symbol: r.Symbol, Status: http.StatusOK}

		if r.Err != nil {
			status, errResp := dto.MapDomainError(r.Err)
			item.Status = status
			item.Error = &errResp.Error
		} else {
			item.Quote = dto.NewQuoteResponse(r.Quote)
		}

		resp.Results = append(resp.Results, item)
	}

	c.JSON(http.StatusOK, resp)
}

// bindQuery binds and validates the query string, writing a 400 on failure.
func bindQuery(c *gin.Context, v any) bool {
	err := dto.BindQueryAndValidate(c, v)
	if err == nil {
		return true
	}

	if dto.IsValidationError(err) {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponseWithDetails(
			dto.ErrorCodeValidation,
			"request validation failed",
			dto.ValidationErrors(err),
		).WithTraceID(dto.GetTraceID(c)))

		return false
	}

	code := dto.ErrorCodeBadRequest
	if !errors.Is(err, dto.ErrBinding) {
		code = dto.ErrorCodeInternal
	}

	c.JSON(dto.HTTPStatusFromCode(code), dto.NewErrorResponse(code, err.Error()).WithTraceID(dto.GetTraceID(c)))

	return false
}

// RegisterStockRoutes registers stock routes on the given router group.
func (h *StockHandler) RegisterStockRoutes(rg *gin.RouterGroup) {
	stocks := rg.Group("/stocks")
	stocks.GET("", h.GetStocks)
	stocks.GET("/:symbol", h.GetStock)
}
