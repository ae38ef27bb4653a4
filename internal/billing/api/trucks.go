// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/weighops/weighbridge/internal/billing/db"
	"github.com/weighops/weighbridge/internal/util"
	"github.com/weighops/weighbridge/internal/weightclient"
)

type truckRequest struct {
	ID         string `json:"id"`
	ProviderID *int64 `json:"provider_id"`
}

// RegisterTruck handles POST /truck.
func (p *v1API) RegisterTruck(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/truck")
	var body truckRequest
	if !RequireJSON(w, r, &body) {
		return
	}
	truckID := strings.TrimSpace(body.ID)
	if truckID == "" {
		respondError(w, http.StatusBadRequest, "truck id is required")
		return
	}
	if body.ProviderID == nil {
		respondError(w, http.StatusBadRequest, "provider_id is required")
		return
	}

	exists, err := p.providerExists(p.DB, *body.ProviderID)
	if respondwith.ErrorText(w, err) {
		return
	}
	if !exists {
		respondError(w, http.StatusNotFound, "no such provider")
		return
	}

	var count int
	err = p.DB.SelectOne(&count, `SELECT COUNT(*) FROM trucks WHERE id = $1`, truckID)
	if respondwith.ErrorText(w, err) {
		return
	}
	if count > 0 {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("truck %q is already registered", truckID))
		return
	}

	truck := db.Truck{ID: truckID, ProviderID: *body.ProviderID}
	err = p.DB.Insert(&truck)
	if respondwith.ErrorText(w, err) {
		return
	}

	respondwith.JSON(w, http.StatusCreated, map[string]any{
		"id":          truck.ID,
		"provider_id": truck.ProviderID,
	})
}

// ReassignTruck handles PUT /truck/{id}.
func (p *v1API) ReassignTruck(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/truck/:id")
	truckID := mux.Vars(r)["id"]

	var truck db.Truck
	err := p.DB.SelectOne(&truck, `SELECT * FROM trucks WHERE id = $1`, truckID)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "no such truck")
		return
	}
	if respondwith.ErrorText(w, err) {
		return
	}

	var body truckRequest
	if !RequireJSON(w, r, &body) {
		return
	}
	if body.ProviderID == nil {
		respondError(w, http.StatusBadRequest, "provider_id is required")
		return
	}

	exists, err := p.providerExists(p.DB, *body.ProviderID)
	if respondwith.ErrorText(w, err) {
		return
	}
	if !exists {
		respondError(w, http.StatusNotFound, "no such provider")
		return
	}

	truck.ProviderID = *body.ProviderID
	_, err = p.DB.Update(&truck)
	if respondwith.ErrorText(w, err) {
		return
	}

	respondwith.JSON(w, http.StatusOK, map[string]any{
		"id":          truck.ID,
		"provider_id": truck.ProviderID,
	})
}

// GetTruck handles GET /truck/{id}: ownership lives here, but tara and
// session data are proxied from the Weigh engine.
func (p *v1API) GetTruck(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/truck/:id")
	truckID := mux.Vars(r)["id"]

	var truck db.Truck
	err := p.DB.SelectOne(&truck, `SELECT * FROM trucks WHERE id = $1`, truckID)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "no such truck")
		return
	}
	if respondwith.ErrorText(w, err) {
		return
	}

	now := p.timeNow()
	query := r.URL.Query()
	from, err := util.ParseCompactTime(query.Get("from"), time.Unix(0, 0))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := util.ParseCompactTime(query.Get("to"), now)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := p.WeightClient.GetItem(r.Context(), truck.ID, from, to)
	switch {
	case errors.Is(err, weightclient.ErrNotFound):
		// registered here, but never crossed the scale
		item = weightclient.Item{ID: truck.ID, Sessions: []int64{}}
	case err != nil:
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondwith.JSON(w, http.StatusOK, map[string]any{
		"id":          truck.ID,
		"provider_id": truck.ProviderID,
		"tara":        taraOrNA(item.Tara),
		"sessions":    item.Sessions,
	})
}

func taraOrNA(tara weightclient.MaybeKilograms) any {
	if tara.Value == nil {
		return "na"
	}
	return *tara.Value
}
