// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package model

import (
	"time"
)

// RecordKey identifies tenant owned records
type RecordKey struct {
	ID string `bson:"id" json:"id"`
}

// Invoice carries only what the governance layer relies on, the tenant
// field is forced by the scoped accessor on every write
type Invoice struct {
	ID        string    `bson:"id" json:"id"`
	TenantID  string    `bson:"tenantId" json:"tenantId"`
	Customer  string    `bson:"customer" json:"customer"`
	Amount    int64     `bson:"amount" json:"amount"`
	Status    string    `bson:"status" json:"status"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

type InventoryItem struct {
	ID       string `bson:"id" json:"id"`
	TenantID string `bson:"tenantId" json:"tenantId"`
	SKU      string `bson:"sku" json:"sku"`
	Name     string `bson:"name" json:"name"`
	Quantity int64  `bson:"quantity" json:"quantity"`
}
