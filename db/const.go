// Copyright © 2025-2026 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Initial reference and motivation taken from
// https://gitlab.com/project-emco/core/emco-base/-/blob/main/src/orchestrator/pkg/infra/db

package db

const (
	// application name reported to the mongo server for every connection
	defaultAppName = "governor"

	// primary key field of every record
	keyField = "_id"
)

// mongo server error codes and labels treated as transient
const (
	mongoLockTimeoutCode   = 24
	mongoLockBusyCode      = 46
	mongoWriteConflictCode = 112

	mongoTransientTxnLabel = "TransientTransactionError"
)
