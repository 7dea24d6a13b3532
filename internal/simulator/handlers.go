package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/finwise/backend/internal/auth"
	"github.com/finwise/backend/internal/db"
	apperrors "github.com/finwise/backend/internal/errors"
	"github.com/finwise/backend/internal/logger"
)

// TickInterval is how often the mock market moves.
const TickInterval = 3 * time.Second

type Handlers struct {
	market  *Market
	service *Service
	hub     *Hub
	log     *logger.Logger

	upgrader websocket.Upgrader
}

func NewHandlers(market *Market, service *Service, hub *Hub) *Handlers {
	return &Handlers{
		market:  market,
		service: service,
		hub:     hub,
		log:     logger.Default().WithComponent("simulator"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser origin checks are handled by the CORS layer; the
			// bearer token query param gates the socket itself.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RunTicker moves the market on an interval and broadcasts each tick until
// the context is cancelled.
func (h *Handlers) RunTicker(ctx context.Context) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			quotes := h.market.Tick(ctx)
			if h.hub.ClientCount() > 0 {
				h.hub.Broadcast(quotes)
			}
		}
	}
}

func (h *Handlers) GetMarket(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteSuccess(w, requestID, http.StatusOK, h.market.Snapshot(r.Context()), "")
	return nil
}

func (h *Handlers) GetPortfolio(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	portfolio, err := h.service.Portfolio(r.Context(), user.ID)
	if err != nil {
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, portfolio, "")
	return nil
}

// GetUserPortfolio shows another user's practice portfolio; practice
// trading is a shared game, so portfolios are visible to any signed-in
// user.
func (h *Handlers) GetUserPortfolio(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())

	id, err := uuid.Parse(r.PathValue("userId"))
	if err != nil {
		return apperrors.BadRequest("Invalid user ID")
	}

	portfolio, err := h.service.View(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrPortfolioNotFound) {
			return apperrors.NotFound("Portfolio")
		}
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, portfolio, "")
	return nil
}

type tradeRequest struct {
	Side     string  `json:"side"`
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
}

func (h *Handlers) Trade(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if req.Side != SideBuy && req.Side != SideSell {
		return apperrors.ValidationError("side must be buy or sell")
	}
	if req.Symbol == "" {
		return apperrors.ValidationError("symbol is required")
	}
	if req.Quantity <= 0 {
		return apperrors.ValidationError("quantity must be positive")
	}

	portfolio, err := h.service.Trade(r.Context(), user.ID, req.Side, req.Symbol, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownSymbol):
			return apperrors.ValidationError("Unknown symbol")
		case errors.Is(err, ErrInsufficientCash):
			return apperrors.BadRequest("Not enough cash for this trade")
		case errors.Is(err, ErrInsufficientQty):
			return apperrors.BadRequest("Not enough shares to sell")
		}
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, portfolio, "")
	return nil
}

func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	portfolio, err := h.service.Reset(r.Context(), user.ID)
	if err != nil {
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, portfolio, "Portfolio reset")
	return nil
}

// Stream upgrades to a websocket and feeds the client market ticks. The
// access token arrives as a query parameter because browsers cannot set
// headers on websocket dials.
func (h *Handlers) Stream(service interface {
	ValidateAccessToken(string) (*auth.Claims, error)
}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := apperrors.GetRequestID(r.Context())

		token := r.URL.Query().Get("token")
		if token == "" {
			apperrors.WriteError(w, requestID, apperrors.MissingToken("token query parameter required"))
			return
		}
		if _, err := service.ValidateAccessToken(token); err != nil {
			apperrors.WriteError(w, requestID, apperrors.InvalidToken("Invalid or expired access token"))
			return
		}

		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Error(r.Context(), "websocket upgrade failed", err)
			return
		}

		client := newClient(h.hub, conn)
		select {
		case h.hub.register <- client:
		case <-h.hub.done:
			conn.Close()
			return
		}

		// Send the current snapshot immediately so the client does not
		// wait for the next tick.
		client.send <- h.market.Snapshot(r.Context())

		go client.writePump()
		go client.readPump()
	}
}
