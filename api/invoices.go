// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/go-core-stack/governor/auth"
	"github.com/go-core-stack/governor/db"
	"github.com/go-core-stack/governor/errors"
	"github.com/go-core-stack/governor/governor"
	"github.com/go-core-stack/governor/model"
	"github.com/go-core-stack/governor/table"
	"github.com/go-core-stack/governor/txn"
)

// statuses an invoice can carry
var invoiceStatuses = map[string]bool{
	"draft": true,
	"sent":  true,
	"paid":  true,
	"void":  true,
}

// newest first
var invoiceOrder = &db.FindOptions{Sort: []db.SortField{{Field: "updatedAt", Desc: true}}}

type invoiceRequest struct {
	Customer string `json:"customer"`
	Amount   int64  `json:"amount"`
	Status   string `json:"status"`
}

func (req *invoiceRequest) validate() error {
	if req.Customer == "" {
		return errors.Wrap(errors.InvalidArgument, "customer is required")
	}
	if req.Amount < 0 {
		return errors.Wrapf(errors.InvalidArgument, "invalid amount %d", req.Amount)
	}
	if req.Status == "" {
		req.Status = "draft"
	}
	if !invoiceStatuses[req.Status] {
		return errors.Wrapf(errors.InvalidArgument, "invalid status %q", req.Status)
	}
	return nil
}

type invoiceList struct {
	Items []*model.Invoice `json:"items"`
}

func (s *Service) listInvoices(w http.ResponseWriter, r *http.Request, tc auth.TenantContext) error {
	scoped, err := s.invoices.Scoped(tc.TenantID)
	if err != nil {
		return err
	}
	filter := table.Filter{}
	if customer := r.URL.Query().Get("customer"); customer != "" {
		filter = filter.Where("customer", customer)
	}
	list, err := scoped.FindMany(r.Context(), filter, invoiceOrder)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, invoiceList{Items: list})
	return nil
}

func (s *Service) createInvoice(w http.ResponseWriter, r *http.Request, tc auth.TenantContext) error {
	scoped, err := s.invoices.Scoped(tc.TenantID)
	if err != nil {
		return err
	}
	req := &invoiceRequest{}
	if err := decodeBody(r, req); err != nil {
		writeClientError(w, err)
		return nil
	}
	if err := req.validate(); err != nil {
		writeClientError(w, err)
		return nil
	}

	key := &model.RecordKey{ID: uuid.NewString()}
	entry := &model.Invoice{
		ID:        key.ID,
		Customer:  req.Customer,
		Amount:    req.Amount,
		Status:    req.Status,
		UpdatedAt: s.now().UTC(),
	}
	if err := scoped.Insert(r.Context(), key, entry); err != nil {
		if writeClientError(w, err) {
			return nil
		}
		return err
	}
	entry.TenantID = scoped.Tenant()
	s.logger.Info("created invoice",
		zap.String("tenant", scoped.Tenant()),
		zap.String("invoice", key.ID))
	writeJSON(w, http.StatusCreated, entry)
	return nil
}

// updateInvoice replaces the invoice fields inside one transaction, a
// conflicting concurrent update is retried by the runner
func (s *Service) updateInvoice(w http.ResponseWriter, r *http.Request, tc auth.TenantContext) error {
	scoped, err := s.invoices.Scoped(tc.TenantID)
	if err != nil {
		return err
	}
	req := &invoiceRequest{}
	if err := decodeBody(r, req); err != nil {
		writeClientError(w, err)
		return nil
	}
	if err := req.validate(); err != nil {
		writeClientError(w, err)
		return nil
	}
	key := &model.RecordKey{ID: chi.URLParam(r, "id")}

	updated, err := txn.Do(r.Context(), s.runner, func(ctx context.Context) (*model.Invoice, error) {
		entry, err := scoped.Find(ctx, key)
		if err != nil {
			return nil, err
		}
		if entry.Status == "void" {
			return nil, errors.Wrapf(errors.InvalidArgument, "invoice %s is void", key.ID)
		}
		entry.Customer = req.Customer
		entry.Amount = req.Amount
		entry.Status = req.Status
		entry.UpdatedAt = s.now().UTC()
		count, err := scoped.Update(ctx, key, entry)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, errors.Wrapf(errors.NotFound, "invoice %s not found", key.ID)
		}
		return entry, nil
	})
	if err != nil {
		if writeClientError(w, err) {
			return nil
		}
		return err
	}
	writeJSON(w, http.StatusOK, updated)
	return nil
}

func (s *Service) deleteInvoice(w http.ResponseWriter, r *http.Request, tc auth.TenantContext) error {
	scoped, err := s.invoices.Scoped(tc.TenantID)
	if err != nil {
		return err
	}
	count, err := scoped.Delete(r.Context(), &model.RecordKey{ID: chi.URLParam(r, "id")})
	if err != nil {
		return err
	}
	if count == 0 {
		writeMessage(w, http.StatusNotFound, "not found")
		return nil
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// listBusinessInvoices serves the invoices of an explicitly requested
// business, privileged callers read any business through the unscoped
// table, everyone else only their own
func (s *Service) listBusinessInvoices(w http.ResponseWriter, r *http.Request, tc auth.TenantContext) error {
	business := chi.URLParam(r, "business")
	if err := governor.Authorize(tc, business); err != nil {
		return err
	}

	var list []*model.Invoice
	var err error
	if tc.Privileged {
		list, err = s.invoices.FindMany(r.Context(), table.Where(table.TenantField, business), invoiceOrder)
	} else {
		var scoped *table.Scoped[model.RecordKey, model.Invoice]
		scoped, err = s.invoices.Scoped(business)
		if err == nil {
			list, err = scoped.FindMany(r.Context(), table.Filter{}, invoiceOrder)
		}
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, invoiceList{Items: list})
	return nil
}

func (s *Service) currentSession(w http.ResponseWriter, r *http.Request, _ auth.TenantContext) error {
	session, err := auth.FromContext(r.Context())
	if err != nil {
		return errors.Wrapf(errors.Unauthorized, "no session on request: %s", err)
	}
	writeJSON(w, http.StatusOK, session)
	return nil
}
