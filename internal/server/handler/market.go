package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/bondoracle/internal/domain"
	"github.com/alanyoungcy/bondoracle/internal/metrics"
)

// MarketOracle is the slice of the registry the market routes use.
type MarketOracle interface {
	RegisterMarket(ctx context.Context, caller common.Address, marketID uint64, quote, payout common.Address) error
	Market(ctx context.Context, marketID uint64) (domain.MarketRegistration, error)
	Markets(ctx context.Context, opts domain.ListOpts) ([]domain.MarketRegistration, error)
	CurrentPrice(ctx context.Context, marketID uint64) (*big.Int, error)
	Decimals(ctx context.Context, marketID uint64) (uint8, error)
}

// MarketHandler serves market registration and pricing.
type MarketHandler struct {
	oracle MarketOracle
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(oracle MarketOracle, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{oracle: oracle, logger: logHandler(logger, "market")}
}

type registerMarketRequest struct {
	MarketID uint64 `json:"market_id"`
	Quote    string `json:"quote"`
	Payout   string `json:"payout"`
}

// priceResponse carries a fixed-point price. Price is a decimal string so
// values beyond 2^53 survive JSON clients.
type priceResponse struct {
	MarketID *uint64         `json:"market_id,omitempty"`
	Pair     *domain.PairKey `json:"pair,omitempty"`
	Price    string          `json:"price"`
	Decimals uint8           `json:"decimals"`
}

type listMarketsResponse struct {
	Markets []domain.MarketRegistration `json:"markets"`
	Limit   int                         `json:"limit"`
	Offset  int                         `json:"offset"`
}

// ListMarkets returns registrations by ascending id.
// GET /api/markets?limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	markets, err := h.oracle.Markets(r.Context(), opts)
	if err != nil {
		writeDomainError(w, r, h.logger, "list markets", err)
		return
	}
	if markets == nil {
		markets = []domain.MarketRegistration{}
	}
	writeJSON(w, http.StatusOK, listMarketsResponse{Markets: markets, Limit: opts.Limit, Offset: opts.Offset})
}

// GetMarket returns a single registration.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := parseMarketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := h.oracle.Market(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, "get market", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Price returns the live price of a registered market.
// GET /api/markets/{id}/price
func (h *MarketHandler) Price(w http.ResponseWriter, r *http.Request) {
	id, err := parseMarketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	started := time.Now()
	price, err := h.oracle.CurrentPrice(r.Context(), id)
	metrics.ObservePriceQuery("market", started, err)
	if err != nil {
		writeDomainError(w, r, h.logger, "market price", err)
		return
	}
	dec, err := h.oracle.Decimals(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, "market decimals", err)
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{MarketID: &id, Price: price.String(), Decimals: dec})
}

// Decimals returns the price precision of a registered market.
// GET /api/markets/{id}/decimals
func (h *MarketHandler) Decimals(w http.ResponseWriter, r *http.Request) {
	id, err := parseMarketID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dec, err := h.oracle.Decimals(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, "market decimals", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"market_id": id, "decimals": dec})
}

// Register binds a market id to a pair on behalf of the signing auctioneer.
// POST /api/markets
func (h *MarketHandler) Register(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	var req registerMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	quote, err := parseAddress(req.Quote)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	payout, err := parseAddress(req.Payout)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.oracle.RegisterMarket(r.Context(), caller, req.MarketID, quote, payout); err != nil {
		writeDomainError(w, r, h.logger, "register market", err)
		return
	}
	m, err := h.oracle.Market(r.Context(), req.MarketID)
	if err != nil {
		writeDomainError(w, r, h.logger, "get market", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}
