// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

// Package reports assembles the aggregated views that the Billing API
// serves, joining billing DB contents with data from the Weigh engine.
package reports

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/sqlext"

	"github.com/weighops/weighbridge/internal/billing/db"
	"github.com/weighops/weighbridge/internal/util"
	"github.com/weighops/weighbridge/internal/weightclient"
)

// Bill is the payment summary for one provider over one time window.
type Bill struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name"`
	From         string           `json:"from"`
	To           string           `json:"to"`
	TruckCount   int              `json:"truckCount"`
	SessionCount int              `json:"sessionCount"`
	Products     []ProductBilling `json:"products"`
	Total        int64            `json:"total"`
}

// ProductBilling aggregates all billed sessions of one produce type.
type ProductBilling struct {
	Product string `json:"product"`
	Count   int    `json:"count"`
	Amount  int64  `json:"amount"` // kg
	Rate    int64  `json:"rate"`   // agorot per kg
	Pay     int64  `json:"pay"`    // agorot
}

var trucksForProviderQuery = sqlext.SimplifyWhitespace(`
	SELECT * FROM trucks WHERE provider_id = $1 ORDER BY id
`)

var ratesForProviderQuery = sqlext.SimplifyWhitespace(`
	SELECT * FROM rates WHERE scope IS NULL OR scope = $1
`)

// GetBill assembles the bill for one provider by fanning out to the Weigh
// engine. Weigh calls that fail do not fail the bill: the affected trucks or
// sessions are skipped (and logged), and the bill renders from the data that
// could be gathered. Sessions without a reconciled net weight are not billed.
func GetBill(ctx context.Context, dbi db.Interface, client *weightclient.Client, provider db.Provider, from, to time.Time) (*Bill, error) {
	var trucks []db.Truck
	_, err := dbi.Select(&trucks, trucksForProviderQuery, provider.ID)
	if err != nil {
		return nil, err
	}

	sessionIDs := make(map[int64]bool)
	for _, truck := range trucks {
		item, err := client.GetItem(ctx, truck.ID, from, to)
		if err != nil {
			// NotFound just means the truck never crossed the scale
			if !errors.Is(err, weightclient.ErrNotFound) {
				logg.Error("bill for provider %d: skipping truck %s: %s", provider.ID, truck.ID, err.Error())
			}
			continue
		}
		for _, id := range item.Sessions {
			sessionIDs[id] = true
		}
	}

	produceBySession := make(map[int64]string)
	weighIns, err := client.ListTransactions(ctx, from, to, "in")
	if err != nil {
		logg.Error("bill for provider %d: cannot map sessions to produce: %s", provider.ID, err.Error())
	}
	for _, t := range weighIns {
		produceBySession[t.ID] = t.Produce
	}

	rates, err := rateTableForProvider(dbi, provider.ID)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]*ProductBilling)
	sessionCount := 0
	for _, sessionID := range slices.Sorted(maps.Keys(sessionIDs)) {
		session, err := client.GetSession(ctx, sessionID)
		if err != nil {
			logg.Error("bill for provider %d: skipping session %d: %s", provider.ID, sessionID, err.Error())
			continue
		}
		if session.Neto.Value == nil {
			// container tares still missing, cannot bill yet
			continue
		}

		product := produceBySession[sessionID]
		if product == "" || product == "na" {
			product = "unknown"
		}
		bucket := buckets[product]
		if bucket == nil {
			bucket = &ProductBilling{Product: product, Rate: rates[product]}
			buckets[product] = bucket
		}
		bucket.Count++
		bucket.Amount += *session.Neto.Value
		bucket.Pay += *session.Neto.Value * bucket.Rate
		sessionCount++
	}

	bill := &Bill{
		ID:           provider.ID,
		Name:         provider.Name,
		From:         util.FormatCompactTime(from),
		To:           util.FormatCompactTime(to),
		TruckCount:   len(trucks),
		SessionCount: sessionCount,
		Products:     []ProductBilling{},
	}
	for _, product := range slices.Sorted(maps.Keys(buckets)) {
		bucket := buckets[product]
		bill.Products = append(bill.Products, *bucket)
		bill.Total += bucket.Pay
	}
	return bill, nil
}

// rateTableForProvider flattens the rate table into the view of one
// provider: provider-scoped rates override the globally scoped rate for the
// same product. Products without a rate bill at 0.
func rateTableForProvider(dbi db.Interface, providerID int64) (map[string]int64, error) {
	var rows []db.Rate
	_, err := dbi.Select(&rows, ratesForProviderQuery, providerID)
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		if row.Scope == nil {
			result[row.ProductID] = row.Rate
		}
	}
	for _, row := range rows {
		if row.Scope != nil {
			result[row.ProductID] = row.Rate
		}
	}
	return result, nil
}
