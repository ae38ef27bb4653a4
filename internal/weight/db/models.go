// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"time"

	gorp "github.com/go-gorp/gorp/v3"

	"github.com/weighops/weighbridge/internal/weight/core"
)

// Direction classifies a record in the weighing log.
type Direction string

const (
	// DirectionIn is a truck entering loaded.
	DirectionIn Direction = "in"
	// DirectionOut is a truck leaving after unloading.
	DirectionOut Direction = "out"
	// DirectionNone is a standalone container weighing without a truck.
	DirectionNone Direction = "none"
)

// IsValid checks if this value is one of the known directions.
func (d Direction) IsValid() bool {
	return d == DirectionIn || d == DirectionOut || d == DirectionNone
}

// Transaction contains a record from the `transactions` table. This table is
// the authoritative log of everything that crossed the scale.
//
// TruckTara is NULL on in rows until the truck weighs out. Neto is NULL for
// as long as it cannot be computed, either because the weigh-out is still
// pending or because some container tare is missing from the registry; the
// API renders NULL neto as the "na" sentinel.
type Transaction struct {
	ID         int64     `db:"id"`
	RecordedAt time.Time `db:"recorded_at"`
	Direction  Direction `db:"direction"`
	Truck      *string   `db:"truck"`      // NULL on standalone container weighings
	Containers string    `db:"containers"` // canonical comma-joined form, "" if none
	Bruto      int64     `db:"bruto"`      // kg
	TruckTara  *int64    `db:"truck_tara"` // kg
	Neto       *int64    `db:"neto"`       // kg
	Produce    string    `db:"produce"`
}

// ContainerList parses the Containers column into canonical ids.
func (t Transaction) ContainerList() []string {
	return core.SplitContainers(t.Containers)
}

// ContainerRegistration contains a record from the `containers_registered`
// table, i.e. one known container tare. The weight is stored as delivered in
// the batch file and converted to kilograms on read.
type ContainerRegistration struct {
	ContainerID string    `db:"container_id"`
	Weight      int64     `db:"weight"`
	Unit        core.Unit `db:"unit"`
}

// TareKilograms returns the registered tare converted to kilograms.
func (c ContainerRegistration) TareKilograms() int64 {
	return c.Unit.ToKilograms(c.Weight)
}

func initGorp(dbMap *gorp.DbMap) {
	dbMap.AddTableWithName(Transaction{}, "transactions").SetKeys(true, "id")
	dbMap.AddTableWithName(ContainerRegistration{}, "containers_registered").SetKeys(false, "container_id")
}
