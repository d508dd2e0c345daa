package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/mohamedBounakhla/marketcore/internal/api/dto"
	"github.com/mohamedBounakhla/marketcore/internal/core"
	"github.com/mohamedBounakhla/marketcore/internal/domain"
	"github.com/mohamedBounakhla/marketcore/internal/middleware"
	"github.com/mohamedBounakhla/marketcore/internal/port"
)

type HTTPServer struct {
	orch    *core.Orchestrator
	symbols *domain.SymbolRegistry
	prices  port.MarketData
}

func NewHTTPServer(orch *core.Orchestrator, symbols *domain.SymbolRegistry, prices port.MarketData) *HTTPServer {
	return &HTTPServer{orch: orch, symbols: symbols, prices: prices}
}

func (s *HTTPServer) Run(addr string) error {
	r := gin.Default()

	rl := middleware.NewRateLimiter(time.Millisecond * 100)
	r.Use(rl.Middleware())

	r.POST("/orders", s.submitOrder)
	r.POST("/orders/cancel", s.cancelOrder)
	r.GET("/orders/:id", s.getOrder)
	r.GET("/orders/:id/transactions", s.getTransactions)
	r.GET("/depth", s.getDepth)
	r.GET("/books", s.getBooks)
	r.GET("/sagas/:id", s.getSaga)
	r.GET("/prices/:symbol", s.getPrice)
	r.POST("/portfolios/deposit", s.deposit)
	r.GET("/portfolios/:id", s.getPortfolio)

	return r.Run(addr)
}

func (s *HTTPServer) submitOrder(c *gin.Context) {
	var req dto.SubmitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sym, err := s.symbols.Resolve(req.Symbol)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	price, err := domain.NewMoneyFromString(req.Price, sym.Quote)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad quantity: " + err.Error()})
		return
	}

	ord, corr, err := s.orch.PlaceOrder(c.Request.Context(), core.OrderRequest{
		PortfolioID: req.PortfolioID,
		Symbol:      sym,
		Side:        domain.Side(req.Side),
		Price:       price,
		Quantity:    qty,
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "correlation_id": corr})
		return
	}

	c.JSON(http.StatusAccepted, dto.SubmitOrderResponse{
		OrderID:       ord.ID,
		CorrelationID: corr,
		Status:        string(ord.Status),
	})
}

func (s *HTTPServer) cancelOrder(c *gin.Context) {
	var req dto.CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.orch.CancelOrder(c.Request.Context(), req.OrderID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": req.OrderID})
}

func (s *HTTPServer) getOrder(c *gin.Context) {
	ord, err := s.orch.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.FromOrder(ord))
}

func (s *HTTPServer) getTransactions(c *gin.Context) {
	txs, err := s.orch.TransactionsForOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]dto.TransactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, dto.FromTransaction(t))
	}
	c.JSON(http.StatusOK, out)
}

func (s *HTTPServer) getDepth(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol query parameter required"})
		return
	}
	levels, _ := strconv.Atoi(c.DefaultQuery("levels", "10"))
	d, err := s.orch.Depth(c.Request.Context(), symbol, levels)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *HTTPServer) getBooks(c *gin.Context) {
	books := s.orch.Books().All()
	out := make([]core.BookOverview, 0, len(books))
	for _, b := range books {
		out = append(out, b.Overview())
	}
	c.JSON(http.StatusOK, out)
}

func (s *HTTPServer) getSaga(c *gin.Context) {
	saga, ok := s.orch.SagaStatus(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "saga not found"})
		return
	}
	c.JSON(http.StatusOK, saga)
}

func (s *HTTPServer) getPrice(c *gin.Context) {
	if s.prices == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no price data"})
		return
	}
	m, ok := s.prices.GetCurrentPrice(c.Param("symbol"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no trades yet for symbol"})
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *HTTPServer) deposit(c *gin.Context) {
	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ledger := s.orch.Ledger()
	if req.Amount != "" && req.Currency != "" {
		m, err := domain.NewMoneyFromString(req.Amount, req.Currency)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ledger.Deposit(req.PortfolioID, m)
	}
	if req.Quantity != "" && req.Asset != "" {
		qty, err := decimal.NewFromString(req.Quantity)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad quantity: " + err.Error()})
			return
		}
		ledger.CreditAsset(req.PortfolioID, domain.Symbol{Code: req.Asset, Base: req.Asset, Quote: req.Asset}, qty)
	}
	c.JSON(http.StatusOK, gin.H{"portfolio_id": req.PortfolioID})
}

func (s *HTTPServer) getPortfolio(c *gin.Context) {
	id := c.Param("id")
	ledger := s.orch.Ledger()
	resp := dto.PortfolioResponse{
		PortfolioID: id,
		Cash:        map[string]decimal.Decimal{},
		Holdings:    map[string]decimal.Decimal{},
	}
	for _, sym := range s.symbols.List() {
		resp.Cash[sym.Quote] = ledger.CashBalance(id, sym.Quote)
		resp.Holdings[sym.Base] = ledger.Holdings(id, sym.Base)
	}
	for _, r := range ledger.ActiveReservations(id) {
		resp.Reservations = append(resp.Reservations, dto.ReservationResponse{
			ID:        r.ID,
			OrderID:   r.OrderID,
			Kind:      string(r.Kind),
			Remaining: r.Remaining,
			ExpiresAt: r.ExpiresAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrUnknownSymbol):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrInsufficientHoldings):
		return http.StatusConflict
	default:
		var invalid *domain.InvalidOrderError
		var transition *domain.InvalidStateTransitionError
		if errors.As(err, &invalid) || errors.As(err, &transition) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}
