// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"database/sql"
	"fmt"

	gorp "github.com/go-gorp/gorp/v3"
	"github.com/sapcc/go-bits/sqlext"

	"github.com/weighops/weighbridge/internal/weight/datamodel"
)

var upsertTareQuery = sqlext.SimplifyWhitespace(`
	INSERT INTO containers_registered (container_id, weight, unit) VALUES ($1, $2, $3)
	ON CONFLICT (container_id) DO UPDATE SET weight = EXCLUDED.weight, unit = EXCLUDED.unit
`)

// Result reports what a batch ingest did.
type Result struct {
	Registered int `json:"registered"`
	Recomputed int `json:"recomputed"`
}

// Apply registers the given tare records and retro-computes the net weights
// that were waiting for them, all in one transaction. A repeated delivery of
// the same batch overwrites the registry entries and recomputes nothing.
func Apply(dbm *gorp.DbMap, records []TareRecord) (Result, error) {
	tx, err := dbm.Begin()
	if err != nil {
		return Result{}, err
	}
	defer sqlext.RollbackUnlessCommitted(tx)

	err = sqlext.WithPreparedStatement(tx, upsertTareQuery, func(stmt *sql.Stmt) error {
		for _, record := range records {
			_, err := stmt.Exec(record.ContainerID, record.Weight, string(record.Unit))
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("while registering container tares: %w", err)
	}

	recomputed, err := datamodel.RecomputePendingNetos(tx)
	if err != nil {
		return Result{}, fmt.Errorf("while recomputing net weights: %w", err)
	}

	return Result{Registered: len(records), Recomputed: recomputed}, tx.Commit()
}
