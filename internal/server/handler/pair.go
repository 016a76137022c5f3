package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alanyoungcy/bondoracle/internal/domain"
	"github.com/alanyoungcy/bondoracle/internal/metrics"
)

// PairOracle is the slice of the registry the pair routes use.
type PairOracle interface {
	PairConfig(ctx context.Context, quote, payout common.Address) (domain.PairRecord, error)
	SetPair(ctx context.Context, caller, quote, payout common.Address, supported bool, data []byte) error
	CurrentPriceOf(ctx context.Context, quote, payout common.Address) (*big.Int, error)
	DecimalsOf(ctx context.Context, quote, payout common.Address) (uint8, error)
}

// PairHandler serves pair configuration and direct pair pricing.
type PairHandler struct {
	oracle PairOracle
	logger *slog.Logger
}

// NewPairHandler creates a PairHandler.
func NewPairHandler(oracle PairOracle, logger *slog.Logger) *PairHandler {
	return &PairHandler{oracle: oracle, logger: logHandler(logger, "pair")}
}

type pairConfigResponse struct {
	Pair      domain.PairKey `json:"pair"`
	Variant   domain.Variant `json:"variant,omitempty"`
	Supported bool           `json:"supported"`
	Config    hexutil.Bytes  `json:"config"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
}

type setPairRequest struct {
	Supported bool          `json:"supported"`
	Config    hexutil.Bytes `json:"config"`
}

// GetConfig returns the stored config payload, hex encoded.
// GET /api/pairs/{quote}/{payout}
func (h *PairHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	quote, payout, err := parsePair(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := h.oracle.PairConfig(r.Context(), quote, payout)
	if err != nil {
		writeDomainError(w, r, h.logger, "get pair", err)
		return
	}
	writeJSON(w, http.StatusOK, toPairConfigResponse(rec))
}

// SetConfig stores or clears a pair config. The caller must be the owner.
// PUT /api/pairs/{quote}/{payout}
func (h *PairHandler) SetConfig(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	quote, payout, err := parsePair(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req setPairRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.oracle.SetPair(r.Context(), caller, quote, payout, req.Supported, req.Config); err != nil {
		writeDomainError(w, r, h.logger, "set pair", err)
		return
	}
	rec, err := h.oracle.PairConfig(r.Context(), quote, payout)
	if err != nil {
		writeDomainError(w, r, h.logger, "get pair", err)
		return
	}
	writeJSON(w, http.StatusOK, toPairConfigResponse(rec))
}

// Price returns the live price of payout in quote.
// GET /api/pairs/{quote}/{payout}/price
func (h *PairHandler) Price(w http.ResponseWriter, r *http.Request) {
	quote, payout, err := parsePair(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	started := time.Now()
	price, err := h.oracle.CurrentPriceOf(r.Context(), quote, payout)
	metrics.ObservePriceQuery("pair", started, err)
	if err != nil {
		writeDomainError(w, r, h.logger, "pair price", err)
		return
	}
	dec, err := h.oracle.DecimalsOf(r.Context(), quote, payout)
	if err != nil {
		writeDomainError(w, r, h.logger, "pair decimals", err)
		return
	}
	pair := domain.NewPairKey(quote, payout)
	writeJSON(w, http.StatusOK, priceResponse{Pair: &pair, Price: price.String(), Decimals: dec})
}

// Decimals returns the price precision of a supported pair.
// GET /api/pairs/{quote}/{payout}/decimals
func (h *PairHandler) Decimals(w http.ResponseWriter, r *http.Request) {
	quote, payout, err := parsePair(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dec, err := h.oracle.DecimalsOf(r.Context(), quote, payout)
	if err != nil {
		writeDomainError(w, r, h.logger, "pair decimals", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pair": domain.NewPairKey(quote, payout), "decimals": dec})
}

func toPairConfigResponse(rec domain.PairRecord) pairConfigResponse {
	out := pairConfigResponse{
		Pair:      rec.Pair,
		Variant:   rec.Variant,
		Supported: rec.Supported,
		Config:    hexutil.Bytes(rec.Config),
	}
	if out.Config == nil {
		out.Config = hexutil.Bytes{}
	}
	if !rec.UpdatedAt.IsZero() {
		t := rec.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}
