// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import (
	"context"

	"github.com/go-core-stack/governor/errors"
	"github.com/go-core-stack/governor/model"
	"github.com/go-core-stack/governor/table"
)

// AccountStore looks up the account a session token references. A
// missing account must be reported with the NotFound code.
type AccountStore interface {
	FindAccount(ctx context.Context, id string) (*model.Account, error)
}

// TableAccountStore serves accounts out of the unscoped account table
type TableAccountStore struct {
	tbl *table.Table[model.AccountKey, model.Account]
}

func NewTableAccountStore(tbl *table.Table[model.AccountKey, model.Account]) *TableAccountStore {
	return &TableAccountStore{tbl: tbl}
}

func (s *TableAccountStore) FindAccount(ctx context.Context, id string) (*model.Account, error) {
	if id == "" {
		return nil, errors.Wrap(errors.NotFound, "account id is empty")
	}
	return s.tbl.Find(ctx, &model.AccountKey{ID: id})
}
