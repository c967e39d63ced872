// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/szijea/springboot-main-sub000/datasource/base"
	"github.com/szijea/springboot-main-sub000/datasource/registry"
	"github.com/szijea/springboot-main-sub000/schema"
	"github.com/szijea/springboot-main-sub000/shared/logger"
)

var adminRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pharmacy_tenant_admin_requests_total",
	Help: "Tenant admin API requests by operation and HTTP status",
}, []string{"op", "status"})

// AddTenantRequest is the body of POST /tenants
type AddTenantRequest struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// AddTenantResponse is returned by POST /tenants
type AddTenantResponse struct {
	Message string         `json:"message"`
	ID      string         `json:"id"`
	Report  *schema.Report `json:"report,omitempty"`
}

// TenantListResponse is returned by GET /tenants
type TenantListResponse struct {
	Tenants []string `json:"tenants"`
}

// TenantAdminHandler serves tenant listing, runtime registration and
// on-demand reconciliation.
type TenantAdminHandler struct {
	registry    *registry.Registry
	provisioner *Provisioner
	onChange    func(ctx context.Context)
	log         *logger.Logger
}

// NewTenantAdminHandler creates the handler. onChange, if set, runs after a
// tenant was added or reconciled.
func NewTenantAdminHandler(reg *registry.Registry, prov *Provisioner, onChange func(ctx context.Context)) *TenantAdminHandler {
	return &TenantAdminHandler{
		registry:    reg,
		provisioner: prov,
		onChange:    onChange,
		log:         logger.New("server"),
	}
}

// RegisterRoutes registers:
//   - GET /tenants
//   - POST /tenants
//   - POST /tenants/{id}/reconcile
func (h *TenantAdminHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/tenants", h.listTenants).Methods(http.MethodGet)
	r.HandleFunc("/tenants", h.addTenant).Methods(http.MethodPost)
	r.HandleFunc("/tenants/{id}/reconcile", h.reconcileTenant).Methods(http.MethodPost)
}

func (h *TenantAdminHandler) listTenants(w http.ResponseWriter, r *http.Request) {
	h.respond(w, "list", http.StatusOK, TenantListResponse{Tenants: h.registry.ListIDs()})
}

func (h *TenantAdminHandler) addTenant(w http.ResponseWriter, r *http.Request) {
	reqID := RequestID(r.Context())

	var req AddTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, "add", http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	req.URL = strings.TrimSpace(req.URL)
	if req.ID == "" || req.URL == "" {
		h.fail(w, "add", http.StatusBadRequest, "id and url are required")
		return
	}

	cfg := base.TenantConfig{ID: req.ID, URL: req.URL, Username: req.Username, Password: req.Password}
	rep, created, err := h.provisioner.Add(r.Context(), cfg)
	if err != nil {
		status := http.StatusInternalServerError
		var dsErr *base.DataSourceError
		if errors.As(err, &dsErr) {
			status = http.StatusBadGateway
		}
		h.log.ErrorWithCode(req.ID, reqID, "Tenant registration failed", status, err, nil)
		h.fail(w, "add", status, err.Error())
		return
	}

	if !created {
		h.respond(w, "add", http.StatusOK, AddTenantResponse{Message: "tenant already registered", ID: req.ID})
		return
	}

	h.changed(r.Context())
	h.log.Info(req.ID, reqID, "Tenant added", map[string]interface{}{"url": cfg.Redacted().URL})
	h.respond(w, "add", http.StatusOK, AddTenantResponse{Message: "tenant registered", ID: req.ID, Report: rep})
}

func (h *TenantAdminHandler) reconcileTenant(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rep, err := h.provisioner.Reconcile(r.Context(), id)
	if errors.Is(err, registry.ErrUnknownTenant) {
		h.fail(w, "reconcile", http.StatusNotFound, "tenant not found: "+id)
		return
	}
	if err != nil {
		h.fail(w, "reconcile", http.StatusInternalServerError, err.Error())
		return
	}

	h.changed(r.Context())
	h.respond(w, "reconcile", http.StatusOK, AddTenantResponse{Message: "tenant reconciled", ID: id, Report: rep})
}

func (h *TenantAdminHandler) changed(ctx context.Context) {
	if h.onChange != nil {
		h.onChange(ctx)
	}
}

func (h *TenantAdminHandler) respond(w http.ResponseWriter, op string, status int, v interface{}) {
	adminRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	writeJSON(w, status, v)
}

func (h *TenantAdminHandler) fail(w http.ResponseWriter, op string, status int, message string) {
	adminRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	writeError(w, status, message)
}
