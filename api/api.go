// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/go-core-stack/governor/auth"
	"github.com/go-core-stack/governor/db"
	"github.com/go-core-stack/governor/errors"
	"github.com/go-core-stack/governor/governor"
	"github.com/go-core-stack/governor/model"
	"github.com/go-core-stack/governor/rate"
	"github.com/go-core-stack/governor/table"
	"github.com/go-core-stack/governor/txn"
)

const (
	// collection names of the tenant owned records
	InvoiceCollection   = "invoices"
	InventoryCollection = "inventory"
)

// Service hosts the tenant owned record routes, every route is served
// through the governor and every read or write of a tenant route goes
// through the scoped accessor of the caller's tenant
type Service struct {
	client    db.StoreClient
	invoices  *table.Table[model.RecordKey, model.Invoice]
	inventory *table.Table[model.RecordKey, model.InventoryItem]
	runner    *txn.Runner
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock replaces the clock stamping record updates
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService binds the record tables to the given data store
func NewService(client db.StoreClient, store db.Store, runner *txn.Runner, opts ...Option) (*Service, error) {
	if client == nil || store == nil {
		return nil, errors.Wrap(errors.InvalidArgument, "store client and data store are required")
	}
	if runner == nil {
		return nil, errors.Wrap(errors.InvalidArgument, "transaction runner is required")
	}
	s := &Service{
		client:    client,
		invoices:  &table.Table[model.RecordKey, model.Invoice]{},
		inventory: &table.Table[model.RecordKey, model.InventoryItem]{},
		runner:    runner,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if err := s.invoices.Initialize(store.GetCollection(InvoiceCollection)); err != nil {
		return nil, err
	}
	if err := s.inventory.Initialize(store.GetCollection(InventoryCollection)); err != nil {
		return nil, err
	}
	return s, nil
}

// Register plumbs the routes on the server router, limit is the budget
// shared by the record routes
func (s *Service) Register(sc *model.ServerContext, g *governor.Governor, limit rate.Config) error {
	if sc == nil || sc.Router == nil {
		return errors.Wrap(errors.InvalidArgument, "server context without http router")
	}
	if g == nil {
		return errors.Wrap(errors.InvalidArgument, "governor is required")
	}
	tenantRoute := func(name string) governor.RouteConfig {
		return governor.RouteConfig{
			Name:          name,
			RateLimit:     &limit,
			RequireAuth:   true,
			RequireTenant: true,
		}
	}

	sc.Router.Route("/api", func(r chi.Router) {
		r.Route("/invoices", func(r chi.Router) {
			r.Method(http.MethodGet, "/", g.Handle(tenantRoute("invoices.list"), s.listInvoices))
			r.Method(http.MethodPost, "/", g.Handle(tenantRoute("invoices.create"), s.createInvoice))
			r.Method(http.MethodPut, "/{id}", g.Handle(tenantRoute("invoices.update"), s.updateInvoice))
			r.Method(http.MethodDelete, "/{id}", g.Handle(tenantRoute("invoices.delete"), s.deleteInvoice))
		})
		r.Route("/inventory", func(r chi.Router) {
			r.Method(http.MethodGet, "/", g.Handle(tenantRoute("inventory.list"), s.listInventory))
			r.Method(http.MethodPost, "/", g.Handle(tenantRoute("inventory.create"), s.createInventoryItem))
		})
		r.Method(http.MethodGet, "/session", g.Handle(governor.RouteConfig{
			Name:        "session",
			RateLimit:   &limit,
			RequireAuth: true,
		}, s.currentSession))
	})
	sc.Router.Method(http.MethodGet, "/admin/businesses/{business}/invoices",
		g.Handle(tenantRoute("admin.invoices"), s.listBusinessInvoices))
	sc.Router.Method(http.MethodGet, "/healthz", g.Handle(governor.RouteConfig{Name: "healthz"}, s.healthz))
	return nil
}

func (s *Service) healthz(w http.ResponseWriter, r *http.Request, _ auth.TenantContext) error {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.client.HealthCheck(ctx); err != nil {
		s.logger.Warn("store health check failed", zap.Error(err))
		writeMessage(w, http.StatusServiceUnavailable, "store unavailable")
		return nil
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}
