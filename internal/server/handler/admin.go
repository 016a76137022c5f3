package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/bondoracle/internal/domain"
)

// Snapshotter writes a registry snapshot and returns its blob path.
type Snapshotter interface {
	Write(ctx context.Context) (string, error)
}

// AdminHandler serves owner-only operational routes.
type AdminHandler struct {
	owner     func(ctx context.Context) (common.Address, error)
	snapshots Snapshotter
	audit     domain.AuditStore
	logger    *slog.Logger
}

// NewAdminHandler creates an AdminHandler. snapshots and audit may be nil,
// in which case their routes answer 503.
func NewAdminHandler(owner func(ctx context.Context) (common.Address, error), snapshots Snapshotter, audit domain.AuditStore, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{owner: owner, snapshots: snapshots, audit: audit, logger: logHandler(logger, "admin")}
}

// Snapshot writes a registry snapshot to blob storage.
// POST /api/admin/snapshot
func (h *AdminHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if !h.requireOwner(w, r) {
		return
	}
	if h.snapshots == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshots are not configured")
		return
	}
	path, err := h.snapshots.Write(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, "write snapshot", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}

// Audit lists audit entries, newest first.
// GET /api/admin/audit?limit=50&offset=0
func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	if !h.requireOwner(w, r) {
		return
	}
	if h.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "audit log is not configured")
		return
	}
	opts := parseListOpts(r)
	entries, err := h.audit.List(r.Context(), opts)
	if err != nil {
		writeDomainError(w, r, h.logger, "list audit", err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "limit": opts.Limit, "offset": opts.Offset})
}

func (h *AdminHandler) requireOwner(w http.ResponseWriter, r *http.Request) bool {
	caller, ok := callerOf(w, r)
	if !ok {
		return false
	}
	owner, err := h.owner(r.Context())
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		writeDomainError(w, r, h.logger, "get owner", err)
		return false
	}
	if err != nil || owner != caller {
		writeError(w, http.StatusForbidden, "caller is not the owner")
		return false
	}
	return true
}
