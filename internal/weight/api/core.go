// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

// Package api implements the HTTP API of the Weigh engine.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	gorp "github.com/go-gorp/gorp/v3"
	"github.com/gorilla/mux"
	"github.com/lib/pq"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/weighops/weighbridge/internal/weight/datamodel"
)

type v1API struct {
	DB *gorp.DbMap
	// slot for test doubles
	timeNow func() time.Time
}

// NewV1API creates an httpapi.API that serves the Weigh engine API.
func NewV1API(dbm *gorp.DbMap, timeNow func() time.Time) httpapi.API {
	return &v1API{DB: dbm, timeNow: timeNow}
}

// AddTo implements the httpapi.API interface.
func (p *v1API) AddTo(r *mux.Router) {
	r.Methods("GET").Path("/health").HandlerFunc(p.GetHealth)

	r.Methods("POST").Path("/weight").HandlerFunc(p.RecordWeight)
	r.Methods("GET").Path("/weight").HandlerFunc(p.ListTransactions)
	r.Methods("POST").Path("/batch-weight").HandlerFunc(p.IngestTareBatch)

	r.Methods("GET").Path("/unknown").HandlerFunc(p.ListUnknownContainers)
	r.Methods("GET").Path("/item/{id}").HandlerFunc(p.GetItem)
	r.Methods("GET").Path("/session/{id}").HandlerFunc(p.GetSession)
}

// GetHealth handles GET /health. The station UI polls this to decide whether
// the scale terminal may accept trucks.
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

// RequireJSON will parse the request body into the given data structure, or
// write an error response if that fails.
func RequireJSON(w http.ResponseWriter, r *http.Request, data any) bool {
	err := json.NewDecoder(r.Body).Decode(data)
	if err != nil {
		respondFailure(w, http.StatusBadRequest, "request body is not valid JSON: "+err.Error())
		return false
	}
	return true
}

// respondFailure writes the error body that the legacy station clients
// expect from this service.
func respondFailure(w http.ResponseWriter, status int, message string) {
	respondwith.JSON(w, status, map[string]string{
		"status":  "Failure",
		"message": message,
	})
}

// respondRecordingError maps the discriminated error kinds of the datamodel
// package onto HTTP statuses.
func respondRecordingError(w http.ResponseWriter, err error) {
	var (
		verr datamodel.ValidationError
		cerr datamodel.ConflictError
		nerr datamodel.NotFoundError
	)
	switch {
	case errors.As(err, &verr):
		respondFailure(w, http.StatusBadRequest, verr.Message)
	case errors.As(err, &cerr):
		respondFailure(w, http.StatusConflict, cerr.Message)
	case errors.As(err, &nerr):
		respondFailure(w, http.StatusNotFound, nerr.Message)
	case isSerializationFailure(err):
		respondFailure(w, http.StatusConflict, "a concurrent recording touched the same truck; please retry")
	default:
		respondwith.ErrorText(w, err)
	}
}

// isSerializationFailure detects Postgres aborting one of two overlapping
// serializable transactions (SQLSTATE 40001).
func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "40001"
}

// netoOrNA renders a nullable net weight in the wire form, where unknown
// values appear as the "na" sentinel rather than as JSON null.
func netoOrNA(neto *int64) any {
	if neto == nil {
		return "na"
	}
	return *neto
}
