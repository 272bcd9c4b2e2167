// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/go-core-stack/governor/auth"
	"github.com/go-core-stack/governor/db"
	"github.com/go-core-stack/governor/errors"
	"github.com/go-core-stack/governor/model"
	"github.com/go-core-stack/governor/table"
)

type inventoryRequest struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

type inventoryList struct {
	Items []*model.InventoryItem `json:"items"`
}

// listInventory lists the items of the tenant, ?sku=a,b narrows the
// result to the given skus
func (s *Service) listInventory(w http.ResponseWriter, r *http.Request, tc auth.TenantContext) error {
	scoped, err := s.inventory.Scoped(tc.TenantID)
	if err != nil {
		return err
	}
	filter := table.Filter{}
	if skus := r.URL.Query().Get("sku"); skus != "" {
		values := []any{}
		for _, sku := range strings.Split(skus, ",") {
			if sku = strings.TrimSpace(sku); sku != "" {
				values = append(values, sku)
			}
		}
		filter = filter.In("sku", values...)
	}
	list, err := scoped.FindMany(r.Context(), filter, &db.FindOptions{Sort: []db.SortField{{Field: "sku"}}})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, inventoryList{Items: list})
	return nil
}

func (s *Service) createInventoryItem(w http.ResponseWriter, r *http.Request, tc auth.TenantContext) error {
	scoped, err := s.inventory.Scoped(tc.TenantID)
	if err != nil {
		return err
	}
	req := &inventoryRequest{}
	if err := decodeBody(r, req); err != nil {
		writeClientError(w, err)
		return nil
	}
	if req.SKU == "" || req.Quantity < 0 {
		writeClientError(w, errors.Wrap(errors.InvalidArgument, "sku and a non negative quantity are required"))
		return nil
	}
	n, err := scoped.Count(r.Context(), table.Where("sku", req.SKU))
	if err != nil {
		return err
	}
	if n != 0 {
		writeClientError(w, errors.Wrapf(errors.AlreadyExists, "sku %s already stocked", req.SKU))
		return nil
	}

	key := &model.RecordKey{ID: uuid.NewString()}
	item := &model.InventoryItem{
		ID:       key.ID,
		SKU:      req.SKU,
		Name:     req.Name,
		Quantity: req.Quantity,
	}
	if err := scoped.Insert(r.Context(), key, item); err != nil {
		return err
	}
	item.TenantID = scoped.Tenant()
	writeJSON(w, http.StatusCreated, item)
	return nil
}
