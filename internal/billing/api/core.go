// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

// Package api implements the HTTP API of the Billing service.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	gorp "github.com/go-gorp/gorp/v3"
	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/weighops/weighbridge/internal/billing/db"
	"github.com/weighops/weighbridge/internal/weightclient"
)

type v1API struct {
	DB           *gorp.DbMap
	WeightClient *weightclient.Client
	// slot for test doubles
	timeNow func() time.Time
}

// NewV1API creates an httpapi.API that serves the Billing service API.
func NewV1API(dbm *gorp.DbMap, client *weightclient.Client, timeNow func() time.Time) httpapi.API {
	return &v1API{DB: dbm, WeightClient: client, timeNow: timeNow}
}

// AddTo implements the httpapi.API interface.
func (p *v1API) AddTo(r *mux.Router) {
	r.Methods("GET").Path("/health").HandlerFunc(p.GetHealth)

	r.Methods("POST").Path("/provider").HandlerFunc(p.CreateProvider)
	r.Methods("PUT").Path("/provider/{id}").HandlerFunc(p.RenameProvider)

	r.Methods("POST").Path("/truck").HandlerFunc(p.RegisterTruck)
	r.Methods("PUT").Path("/truck/{id}").HandlerFunc(p.ReassignTruck)
	r.Methods("GET").Path("/truck/{id}").HandlerFunc(p.GetTruck)

	r.Methods("POST").Path("/rates").HandlerFunc(p.UploadRates)
	r.Methods("GET").Path("/rates").HandlerFunc(p.DownloadRates)

	r.Methods("GET").Path("/bill/{id}").HandlerFunc(p.GetBill)
}

// GetHealth handles GET /health.
func (p *v1API) GetHealth(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/health")
	httpapi.SkipRequestLog(r)

	var one int
	err := p.DB.SelectOne(&one, `SELECT 1`)
	if respondwith.ErrorText(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, map[string]string{"status": "200 OK"})
}

// respondError writes the error body that the Billing clients expect.
func respondError(w http.ResponseWriter, status int, message string) {
	respondwith.JSON(w, status, map[string]string{"error": message})
}

// RequireJSON will parse the request body into the given data structure, or
// write an error response if that fails.
func RequireJSON(w http.ResponseWriter, r *http.Request, data any) bool {
	err := json.NewDecoder(r.Body).Decode(data)
	if err != nil {
		respondError(w, http.StatusBadRequest, "request body is not valid JSON: "+err.Error())
		return false
	}
	return true
}

// FindProviderFromRequest loads the db.Provider referenced by the :id path
// parameter. Any errors will be written into the response immediately and
// cause a nil return value.
func (p *v1API) FindProviderFromRequest(w http.ResponseWriter, r *http.Request) *db.Provider {
	providerID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusNotFound, "no such provider")
		return nil
	}

	var provider db.Provider
	err = p.DB.SelectOne(&provider, `SELECT * FROM providers WHERE id = $1`, providerID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		respondError(w, http.StatusNotFound, "no such provider")
		return nil
	case respondwith.ErrorText(w, err):
		return nil
	default:
		return &provider
	}
}

// providerExists checks a provider id referenced from a request body.
func (p *v1API) providerExists(dbi db.Interface, providerID int64) (bool, error) {
	var count int
	err := dbi.SelectOne(&count, `SELECT COUNT(*) FROM providers WHERE id = $1`, providerID)
	return count > 0, err
}
