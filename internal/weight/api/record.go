// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"
	"github.com/sapcc/go-bits/sqlext"

	"github.com/weighops/weighbridge/internal/weight/core"
	"github.com/weighops/weighbridge/internal/weight/datamodel"
	"github.com/weighops/weighbridge/internal/weight/db"
)

var recordedTransactionsCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "weighbridge_recorded_transactions",
		Help: "Counts successfully recorded weight transactions by direction.",
	},
	[]string{"direction"},
)

func init() {
	prometheus.MustRegister(recordedTransactionsCounter)
}

// weightRequest is the request body for POST /weight. `containers` uses the
// comma-joined form that the station terminals send.
type weightRequest struct {
	Direction  string `json:"direction"`
	Truck      string `json:"truck"`
	Containers string `json:"containers"`
	Weight     *int64 `json:"weight"`
	Unit       string `json:"unit"`
	Force      bool   `json:"force"`
	Produce    string `json:"produce"`
}

// RecordWeight handles POST /weight.
func (p *v1API) RecordWeight(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/weight")
	var body weightRequest
	if !RequireJSON(w, r, &body) {
		return
	}

	req, err := p.parseWeightRequest(body)
	if err != nil {
		respondRecordingError(w, err)
		return
	}

	tx, err := p.DB.Begin()
	if respondwith.ErrorText(w, err) {
		return
	}
	defer sqlext.RollbackUnlessCommitted(tx)
	_, err = tx.Exec(`SET TRANSACTION ISOLATION LEVEL SERIALIZABLE`)
	if respondwith.ErrorText(w, err) {
		return
	}

	// gorp's WithContext returns the gorp.SqlExecutor interface, but the
	// underlying *gorp.Transaction satisfies db.Interface
	result, err := datamodel.RecordWeight(tx.WithContext(r.Context()).(db.Interface), req)
	if err != nil {
		respondRecordingError(w, err)
		return
	}
	// the serialization check only happens at commit for overlapping
	// transactions, so the commit error needs the same mapping
	err = tx.Commit()
	if err != nil {
		respondRecordingError(w, err)
		return
	}
	recordedTransactionsCounter.WithLabelValues(string(req.Direction)).Inc()

	respondwith.JSON(w, http.StatusCreated, renderRecordResult(req.Direction, result))
}

func (p *v1API) parseWeightRequest(body weightRequest) (datamodel.RecordRequest, error) {
	var empty datamodel.RecordRequest

	direction := db.Direction(body.Direction)
	if !direction.IsValid() {
		return empty, datamodel.ValidationError{Message: `direction must be "in", "out" or "none"`}
	}
	unit := core.Unit(body.Unit)
	if !unit.IsValid() {
		return empty, datamodel.ValidationError{Message: `unit must be "kg" or "lbs"`}
	}
	if body.Weight == nil || *body.Weight <= 0 {
		return empty, datamodel.ValidationError{Message: "weight must be a positive integer"}
	}

	truck := strings.TrimSpace(body.Truck)
	if direction == db.DirectionNone {
		if truck != "" && truck != "na" {
			return empty, datamodel.ValidationError{Message: `truck must be omitted for direction "none"`}
		}
		truck = ""
	} else if truck == "" || truck == "na" {
		return empty, datamodel.ValidationError{Message: `truck is required for directions "in" and "out"`}
	}

	produce := strings.TrimSpace(body.Produce)
	if produce == "" {
		produce = "na"
	}

	// nil (field absent or blank) and an explicit list behave differently on
	// weigh-out, so the distinction must survive parsing
	var containers []string
	if strings.TrimSpace(body.Containers) != "" {
		containers = core.SplitContainers(body.Containers)
	}

	return datamodel.RecordRequest{
		Direction:  direction,
		Truck:      truck,
		Containers: containers,
		WeightKg:   unit.ToKilograms(*body.Weight),
		Force:      body.Force,
		Produce:    produce,
		Now:        p.timeNow(),
	}, nil
}

func renderRecordResult(direction db.Direction, result datamodel.RecordResult) map[string]any {
	switch direction {
	case db.DirectionIn:
		return map[string]any{
			"id":    result.ID,
			"truck": result.Truck,
			"bruto": result.Bruto,
		}
	case db.DirectionOut:
		return map[string]any{
			"id":        result.ID,
			"truck":     result.Truck,
			"bruto":     result.Bruto,
			"truckTara": *result.TruckTara,
			"neto":      netoOrNA(result.Neto),
		}
	default:
		return map[string]any{
			"id":            result.ID,
			"container":     containersOrEmpty(core.JoinContainers(result.Containers)),
			"bruto":         result.Bruto,
			"containerTara": netoOrNA(result.ContainerTara),
			"neto":          netoOrNA(result.Neto),
		}
	}
}
