// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

package datamodel

import (
	"database/sql"
	"errors"

	"github.com/sapcc/go-bits/sqlext"

	"github.com/weighops/weighbridge/internal/weight/db"
)

var containerTareQuery = sqlext.SimplifyWhitespace(`
	SELECT * FROM containers_registered WHERE container_id = $1
`)

// ContainerTaraSum computes the total registered tare of the given containers
// in kilograms. allKnown is false if at least one container is missing from
// the registry, in which case the sum must not be used.
func ContainerTaraSum(dbi db.Interface, containerIDs []string) (sum int64, allKnown bool, err error) {
	allKnown = true
	for _, id := range containerIDs {
		var reg db.ContainerRegistration
		err := dbi.SelectOne(&reg, containerTareQuery, id)
		if errors.Is(err, sql.ErrNoRows) {
			allKnown = false
			continue
		}
		if err != nil {
			return 0, false, err
		}
		sum += reg.TareKilograms()
	}
	if !allKnown {
		return 0, false, nil
	}
	return sum, true, nil
}

var pendingNetoQuery = sqlext.SimplifyWhitespace(`
	SELECT * FROM transactions
	 WHERE neto IS NULL AND direction IN ('out', 'none') AND containers != ''
	 ORDER BY id
`)

var pairedWeighInQuery = sqlext.SimplifyWhitespace(`
	SELECT * FROM transactions
	 WHERE truck = $1 AND direction = 'in' AND id < $2
	 ORDER BY id DESC LIMIT 1
`)

// RecomputePendingNetos revisits transactions whose net weight could not be
// computed at recording time and fills it in for those whose container tares
// have since been registered. For out rows, the paired in row is updated as
// well. Returns the number of transactions that were resolved.
func RecomputePendingNetos(dbi db.Interface) (int, error) {
	var pending []db.Transaction
	_, err := dbi.Select(&pending, pendingNetoQuery)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, t := range pending {
		tareSum, allKnown, err := ContainerTaraSum(dbi, t.ContainerList())
		if err != nil {
			return resolved, err
		}
		if !allKnown {
			// still waiting for tares, stays "na"
			continue
		}

		var truckTara int64
		if t.TruckTara != nil {
			truckTara = *t.TruckTara
		}
		neto := t.Bruto - truckTara - tareSum
		t.Neto = &neto
		_, err = dbi.Update(&t)
		if err != nil {
			return resolved, err
		}

		if t.Direction == db.DirectionOut && t.Truck != nil {
			err = backfillPairedWeighIn(dbi, t, neto)
			if err != nil {
				return resolved, err
			}
		}
		resolved++
	}
	return resolved, nil
}

func backfillPairedWeighIn(dbi db.Interface, out db.Transaction, neto int64) error {
	var in db.Transaction
	err := dbi.SelectOne(&in, pairedWeighInQuery, *out.Truck, out.ID)
	if errors.Is(err, sql.ErrNoRows) {
		// forced overwrites can leave an out row without its weigh-in
		return nil
	}
	if err != nil {
		return err
	}
	in.Neto = &neto
	_, err = dbi.Update(&in)
	return err
}
