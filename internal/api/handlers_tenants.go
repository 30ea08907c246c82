// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/encore/internal/database"
	"github.com/tomtom215/encore/internal/models"
	"github.com/tomtom215/encore/internal/validation"
)

// lookupTenant validates the ID and resolves the tenant, writing the error
// response itself when it returns nil.
func (h *Handler) lookupTenant(w http.ResponseWriter, r *http.Request, id string) *models.Tenant {
	if verr := validation.ValidateVar("tenant_id", id, "required,tenantid"); verr != nil {
		respondAPIError(w, http.StatusBadRequest, verr.ToAPIError())
		return nil
	}
	if h.tenants == nil {
		return &models.Tenant{ID: id}
	}

	tenant, err := h.tenants.GetTenant(r.Context(), id)
	if errors.Is(err, database.ErrTenantNotFound) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Tenant not found", nil)
		return nil
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to load tenant", err)
		return nil
	}
	return tenant
}

// TenantSnapshot returns the tenant's ClientViewState for polling clients.
func (h *Handler) TenantSnapshot(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	tenant := h.lookupTenant(w, r, chi.URLParam(r, "tenantID"))
	if tenant == nil {
		return
	}

	view, err := h.watcher.Snapshot(r.Context(), tenant.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to build snapshot", err)
		return
	}
	if view.EventSettings == nil {
		view.EventSettings = tenant.EventSettings
	}
	if view.Requests == nil {
		view.Requests = []models.SongRequest{}
	}
	respondSuccess(w, view, start)
}

// TenantReconnect clears a tenant's auth-expired mark and breaker state.
func (h *Handler) TenantReconnect(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	tenant := h.lookupTenant(w, r, chi.URLParam(r, "tenantID"))
	if tenant == nil {
		return
	}
	h.watcher.ReconnectTenant(tenant.ID)
	respondSuccess(w, map[string]string{"tenant_id": tenant.ID}, start)
}
