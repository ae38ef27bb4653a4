// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

package db

import (
	gorp "github.com/go-gorp/gorp/v3"
)

// Provider contains a record from the `providers` table.
type Provider struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Truck contains a record from the `trucks` table, i.e. one truck ownership.
// The id is the license plate that the Weigh engine records.
type Truck struct {
	ID         string `db:"id"`
	ProviderID int64  `db:"provider_id"`
}

// Rate contains a record from the `rates` table. Rates are in agorot per
// kilogram. A NULL Scope applies to all providers; a provider-scoped rate for
// the same product overrides it for that provider. The rate table is only
// ever replaced wholesale by an upload, so there are no per-row updates.
type Rate struct {
	ProductID string `db:"product_id"`
	Rate      int64  `db:"rate"`
	Scope     *int64 `db:"scope"`
}

func initGorp(dbMap *gorp.DbMap) {
	dbMap.AddTableWithName(Provider{}, "providers").SetKeys(true, "id")
	dbMap.AddTableWithName(Truck{}, "trucks").SetKeys(false, "id")
	dbMap.AddTableWithName(Rate{}, "rates")
}
