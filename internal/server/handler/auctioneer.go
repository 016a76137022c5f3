package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/bondoracle/internal/domain"
)

// AccessOracle is the slice of the registry that manages access control.
type AccessOracle interface {
	Owner(ctx context.Context) (common.Address, error)
	TransferOwnership(ctx context.Context, caller, newOwner common.Address) error
	SetAuctioneer(ctx context.Context, caller, addr common.Address, enabled bool) error
	Auctioneers(ctx context.Context) ([]domain.AuctioneerEntry, error)
}

// AccessHandler serves the owner and auctioneer routes.
type AccessHandler struct {
	oracle AccessOracle
	logger *slog.Logger
}

// NewAccessHandler creates an AccessHandler.
func NewAccessHandler(oracle AccessOracle, logger *slog.Logger) *AccessHandler {
	return &AccessHandler{oracle: oracle, logger: logHandler(logger, "access")}
}

// ListAuctioneers returns every known auctioneer, enabled or not.
// GET /api/auctioneers
func (h *AccessHandler) ListAuctioneers(w http.ResponseWriter, r *http.Request) {
	entries, err := h.oracle.Auctioneers(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, "list auctioneers", err)
		return
	}
	if entries == nil {
		entries = []domain.AuctioneerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"auctioneers": entries})
}

// SetAuctioneer enables or disables an auctioneer.
// PUT /api/auctioneers/{address}
func (h *AccessHandler) SetAuctioneer(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	addr, err := parseAddress(pathParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	if err := h.oracle.SetAuctioneer(r.Context(), caller, addr, *req.Enabled); err != nil {
		writeDomainError(w, r, h.logger, "set auctioneer", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": addr, "enabled": *req.Enabled})
}

// GetOwner returns the current owner.
// GET /api/owner
func (h *AccessHandler) GetOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := h.oracle.Owner(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, "get owner", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"owner": owner})
}

// TransferOwnership hands the owner role to another address.
// PUT /api/owner
func (h *AccessHandler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	var req struct {
		Owner string `json:"owner"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	newOwner, err := parseAddress(req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.oracle.TransferOwnership(r.Context(), caller, newOwner); err != nil {
		writeDomainError(w, r, h.logger, "transfer ownership", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"owner": newOwner})
}
