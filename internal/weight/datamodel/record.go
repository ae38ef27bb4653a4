// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

package datamodel

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sapcc/go-bits/sqlext"

	"github.com/weighops/weighbridge/internal/weight/core"
	"github.com/weighops/weighbridge/internal/weight/db"
)

// RecordRequest is a fully validated weight recording. The API layer is
// responsible for direction/unit/weight validation, unit conversion and
// container id canonicalization before building this.
type RecordRequest struct {
	Direction db.Direction
	Truck     string // empty for DirectionNone
	// Containers is nil when the request did not mention containers at all.
	// On weigh-out, nil means "inherit the weigh-in's container list".
	Containers []string
	WeightKg   int64
	Force      bool
	Produce    string
	Now        time.Time
}

// RecordResult is the caller-visible outcome of a successful recording.
// For in and out rows, ID is the session id (the id of the in row).
type RecordResult struct {
	ID            int64
	Truck         string
	Containers    []string
	Bruto         int64
	TruckTara     *int64
	ContainerTara *int64
	Neto          *int64
}

// RecordWeight executes one recording against the per-truck state machine.
// The given dbi must be a transaction with serializable isolation: the
// conflict check, the optional forced delete and the insert/backfill must not
// interleave with a concurrent recording for the same truck.
func RecordWeight(dbi db.Interface, req RecordRequest) (RecordResult, error) {
	switch req.Direction {
	case db.DirectionIn:
		return recordIn(dbi, req)
	case db.DirectionOut:
		return recordOut(dbi, req)
	case db.DirectionNone:
		return recordNone(dbi, req)
	default:
		return RecordResult{}, ValidationError{Message: fmt.Sprintf("unknown direction %q", req.Direction)}
	}
}

var latestTransactionForTruckQuery = sqlext.SimplifyWhitespace(`
	SELECT * FROM transactions WHERE truck = $1 ORDER BY id DESC LIMIT 1
`)

var latestTransactionQuery = sqlext.SimplifyWhitespace(`
	SELECT * FROM transactions ORDER BY id DESC LIMIT 1
`)

func latestForTruck(dbi db.Interface, truck string) (*db.Transaction, error) {
	var t db.Transaction
	err := dbi.SelectOne(&t, latestTransactionForTruckQuery, truck)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func recordIn(dbi db.Interface, req RecordRequest) (RecordResult, error) {
	prev, err := latestForTruck(dbi, req.Truck)
	if err != nil {
		return RecordResult{}, err
	}

	if prev != nil && prev.Direction == db.DirectionIn {
		if !req.Force {
			return RecordResult{}, ConflictError{
				PriorTransactionID: prev.ID,
				Message:            fmt.Sprintf("truck %s already has an open weigh-in (session %d); repeat with force to overwrite it", req.Truck, prev.ID),
			}
		}
		// a forced weigh-in starts a fresh session, the stale one is discarded
		_, err := dbi.Delete(prev)
		if err != nil {
			return RecordResult{}, err
		}
	}

	truck := req.Truck
	row := db.Transaction{
		RecordedAt: req.Now,
		Direction:  db.DirectionIn,
		Truck:      &truck,
		Containers: core.JoinContainers(req.Containers),
		Bruto:      req.WeightKg,
		Produce:    req.Produce,
	}
	err = dbi.Insert(&row)
	if err != nil {
		return RecordResult{}, err
	}

	return RecordResult{
		ID:         row.ID,
		Truck:      req.Truck,
		Containers: req.Containers,
		Bruto:      row.Bruto,
	}, nil
}

func recordOut(dbi db.Interface, req RecordRequest) (RecordResult, error) {
	prev, err := latestForTruck(dbi, req.Truck)
	if err != nil {
		return RecordResult{}, err
	}

	if prev != nil && prev.Direction == db.DirectionOut {
		if !req.Force {
			return RecordResult{}, ConflictError{
				PriorTransactionID: prev.ID,
				Message:            fmt.Sprintf("truck %s already weighed out (transaction %d); repeat with force to overwrite it", req.Truck, prev.ID),
			}
		}
		// a forced weigh-out replaces the previous one, the session stays
		_, err := dbi.Delete(prev)
		if err != nil {
			return RecordResult{}, err
		}
		prev, err = latestForTruck(dbi, req.Truck)
		if err != nil {
			return RecordResult{}, err
		}
	}

	if prev == nil || prev.Direction != db.DirectionIn {
		return RecordResult{}, NotFoundError{
			Message: fmt.Sprintf("no open weigh-in recorded for truck %s", req.Truck),
		}
	}

	containers := req.Containers
	if containers == nil {
		containers = prev.ContainerList()
	} else if core.JoinContainers(containers) != prev.Containers {
		return RecordResult{}, ValidationError{
			Message: fmt.Sprintf("containers %q do not match weigh-in %d (%q)", core.JoinContainers(containers), prev.ID, prev.Containers),
		}
	}

	truckTara := req.WeightKg
	var neto *int64
	tareSum, allKnown, err := ContainerTaraSum(dbi, containers)
	if err != nil {
		return RecordResult{}, err
	}
	if allKnown {
		n := prev.Bruto - truckTara - tareSum
		neto = &n
	}

	// the session figures live on both rows, so that each renders standalone
	prev.TruckTara = &truckTara
	prev.Neto = neto
	_, err = dbi.Update(prev)
	if err != nil {
		return RecordResult{}, err
	}

	truck := req.Truck
	row := db.Transaction{
		RecordedAt: req.Now,
		Direction:  db.DirectionOut,
		Truck:      &truck,
		Containers: core.JoinContainers(containers),
		Bruto:      prev.Bruto,
		TruckTara:  &truckTara,
		Neto:       neto,
		Produce:    prev.Produce,
	}
	err = dbi.Insert(&row)
	if err != nil {
		return RecordResult{}, err
	}

	return RecordResult{
		ID:         prev.ID,
		Truck:      req.Truck,
		Containers: containers,
		Bruto:      prev.Bruto,
		TruckTara:  &truckTara,
		Neto:       neto,
	}, nil
}

func recordNone(dbi db.Interface, req RecordRequest) (RecordResult, error) {
	var latest db.Transaction
	err := dbi.SelectOne(&latest, latestTransactionQuery)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return RecordResult{}, err
	}
	if err == nil && latest.Direction == db.DirectionIn {
		return RecordResult{}, ValidationError{
			Message: fmt.Sprintf("cannot record a standalone weighing while session %d is still open; weigh the truck out first", latest.ID),
		}
	}

	var (
		neto          *int64
		containerTara *int64
	)
	if len(req.Containers) > 0 {
		tareSum, allKnown, err := ContainerTaraSum(dbi, req.Containers)
		if err != nil {
			return RecordResult{}, err
		}
		if allKnown {
			n := req.WeightKg - tareSum
			containerTara = &tareSum
			neto = &n
		}
	}

	zero := int64(0)
	row := db.Transaction{
		RecordedAt: req.Now,
		Direction:  db.DirectionNone,
		Containers: core.JoinContainers(req.Containers),
		Bruto:      req.WeightKg,
		TruckTara:  &zero,
		Neto:       neto,
		Produce:    req.Produce,
	}
	err = dbi.Insert(&row)
	if err != nil {
		return RecordResult{}, err
	}

	return RecordResult{
		ID:            row.ID,
		Containers:    req.Containers,
		Bruto:         row.Bruto,
		ContainerTara: containerTara,
		Neto:          neto,
	}, nil
}
