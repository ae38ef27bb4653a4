// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"
	"github.com/sapcc/go-bits/sqlext"

	"github.com/weighops/weighbridge/internal/util"
	"github.com/weighops/weighbridge/internal/weight/core"
	"github.com/weighops/weighbridge/internal/weight/db"
)

// timeWindow parses the from/to query parameters shared by all read endpoints.
func timeWindow(r *http.Request, defaultFrom, defaultTo time.Time) (from, to time.Time, err error) {
	query := r.URL.Query()
	from, err = util.ParseCompactTime(query.Get("from"), defaultFrom)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err = util.ParseCompactTime(query.Get("to"), defaultTo)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

// containersOrEmpty parses the containers column into ids, rendering the
// empty case as [] rather than null.
func containersOrEmpty(joined string) []string {
	ids := core.SplitContainers(joined)
	if ids == nil {
		return []string{}
	}
	return ids
}

var listTransactionsQuery = sqlext.SimplifyWhitespace(`
	SELECT * FROM transactions WHERE recorded_at BETWEEN $1 AND $2 ORDER BY id
`)

// ListTransactions handles GET /weight.
func (p *v1API) ListTransactions(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/weight")
	now := p.timeNow()
	from, to, err := timeWindow(r, util.StartOfToday(now), now)
	if err != nil {
		respondFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := r.URL.Query().Get("filter")
	if filter == "" {
		filter = "in,out,none"
	}
	allowed := make(map[db.Direction]bool)
	for _, field := range strings.Split(filter, ",") {
		direction := db.Direction(strings.TrimSpace(field))
		if !direction.IsValid() {
			respondFailure(w, http.StatusBadRequest, fmt.Sprintf("invalid direction %q in filter", field))
			return
		}
		allowed[direction] = true
	}

	var txns []db.Transaction
	_, err = p.DB.Select(&txns, listTransactionsQuery, from, to)
	if respondwith.ErrorText(w, err) {
		return
	}

	result := []map[string]any{}
	for _, t := range txns {
		if !allowed[t.Direction] {
			continue
		}
		result = append(result, map[string]any{
			"id":         t.ID,
			"direction":  t.Direction,
			"bruto":      t.Bruto,
			"neto":       netoOrNA(t.Neto),
			"produce":    t.Produce,
			"containers": containersOrEmpty(t.Containers),
		})
	}
	respondwith.JSON(w, http.StatusOK, result)
}

var (
	truckAppearanceCountQuery = sqlext.SimplifyWhitespace(`
		SELECT COUNT(*) FROM transactions WHERE truck = $1
	`)
	truckSessionsQuery = sqlext.SimplifyWhitespace(`
		SELECT id FROM transactions
		 WHERE truck = $1 AND direction = 'in' AND recorded_at BETWEEN $2 AND $3
		 ORDER BY id
	`)
	truckLatestTaraQuery = sqlext.SimplifyWhitespace(`
		SELECT truck_tara FROM transactions
		 WHERE truck = $1 AND truck_tara IS NOT NULL
		 ORDER BY id DESC LIMIT 1
	`)
	containerSessionsQuery = sqlext.SimplifyWhitespace(`
		SELECT id, containers FROM transactions
		 WHERE direction IN ('in', 'none') AND containers != '' AND recorded_at BETWEEN $1 AND $2
		 ORDER BY id
	`)
	containerRegisteredQuery = sqlext.SimplifyWhitespace(`
		SELECT EXISTS (SELECT 1 FROM containers_registered WHERE container_id = $1)
	`)
)

// GetItem handles GET /item/{id}. Trucks take precedence: an id that appears
// both as a truck and inside container lists is reported as a truck.
func (p *v1API) GetItem(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/item/:id")
	itemID := mux.Vars(r)["id"]
	from, to, err := timeWindow(r, time.Unix(0, 0), p.timeNow())
	if err != nil {
		respondFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	var truckAppearances int
	err = p.DB.SelectOne(&truckAppearances, truckAppearanceCountQuery, itemID)
	if respondwith.ErrorText(w, err) {
		return
	}
	if truckAppearances > 0 {
		p.getTruckItem(w, itemID, from, to)
		return
	}
	p.getContainerItem(w, core.NormalizeContainerID(itemID), from, to)
}

func (p *v1API) getTruckItem(w http.ResponseWriter, truckID string, from, to time.Time) {
	sessions := []int64{}
	err := sqlext.ForeachRow(p.DB, truckSessionsQuery, []any{truckID, from, to}, func(rows *sql.Rows) error {
		var id int64
		err := rows.Scan(&id)
		if err == nil {
			sessions = append(sessions, id)
		}
		return err
	})
	if respondwith.ErrorText(w, err) {
		return
	}

	var tara any = "na"
	var latestTara int64
	err = p.DB.SelectOne(&latestTara, truckLatestTaraQuery, truckID)
	if err == nil {
		tara = latestTara
	} else if !errors.Is(err, sql.ErrNoRows) {
		respondwith.ErrorText(w, err)
		return
	}

	respondwith.JSON(w, http.StatusOK, map[string]any{
		"id":       truckID,
		"tara":     tara,
		"sessions": sessions,
	})
}

func (p *v1API) getContainerItem(w http.ResponseWriter, containerID string, from, to time.Time) {
	var registered bool
	err := p.DB.SelectOne(&registered, containerRegisteredQuery, containerID)
	if respondwith.ErrorText(w, err) {
		return
	}

	referenced := false
	err = sqlext.ForeachRow(p.DB, referencedContainersQuery, nil, func(rows *sql.Rows) error {
		var containers string
		err := rows.Scan(&containers)
		if err == nil && slices.Contains(core.SplitContainers(containers), containerID) {
			referenced = true
		}
		return err
	})
	if respondwith.ErrorText(w, err) {
		return
	}
	if !registered && !referenced {
		respondFailure(w, http.StatusNotFound, fmt.Sprintf("no truck or container with id %q", containerID))
		return
	}

	sessions := []int64{}
	err = sqlext.ForeachRow(p.DB, containerSessionsQuery, []any{from, to}, func(rows *sql.Rows) error {
		var (
			id         int64
			containers string
		)
		err := rows.Scan(&id, &containers)
		if err != nil {
			return err
		}
		if slices.Contains(core.SplitContainers(containers), containerID) {
			sessions = append(sessions, id)
		}
		return nil
	})
	if respondwith.ErrorText(w, err) {
		return
	}

	var tara any = "na"
	var reg db.ContainerRegistration
	err = p.DB.SelectOne(&reg, containerTareByIDQuery, containerID)
	if err == nil {
		tara = reg.TareKilograms()
	} else if !errors.Is(err, sql.ErrNoRows) {
		respondwith.ErrorText(w, err)
		return
	}

	respondwith.JSON(w, http.StatusOK, map[string]any{
		"id":       containerID,
		"tara":     tara,
		"sessions": sessions,
	})
}

var containerTareByIDQuery = sqlext.SimplifyWhitespace(`
	SELECT * FROM containers_registered WHERE container_id = $1
`)

var transactionByIDQuery = sqlext.SimplifyWhitespace(`
	SELECT * FROM transactions WHERE id = $1
`)

var pairedWeighInForOutQuery = sqlext.SimplifyWhitespace(`
	SELECT * FROM transactions
	 WHERE truck = $1 AND direction = 'in' AND id < $2
	 ORDER BY id DESC LIMIT 1
`)

// GetSession handles GET /session/{id}. An out-row id resolves to its
// session, i.e. the paired in row.
func (p *v1API) GetSession(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/session/:id")
	sessionID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondFailure(w, http.StatusNotFound, "no such session")
		return
	}

	var t db.Transaction
	err = p.DB.SelectOne(&t, transactionByIDQuery, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		respondFailure(w, http.StatusNotFound, "no such session")
		return
	}
	if respondwith.ErrorText(w, err) {
		return
	}

	if t.Direction == db.DirectionOut {
		var in db.Transaction
		err := p.DB.SelectOne(&in, pairedWeighInForOutQuery, *t.Truck, t.ID)
		if err == nil {
			t = in
		} else if !errors.Is(err, sql.ErrNoRows) {
			respondwith.ErrorText(w, err)
			return
		}
		// an orphaned out row (weigh-in overwritten by force) renders itself
	}

	switch t.Direction {
	case db.DirectionNone:
		var containerTara any = "na"
		if t.Neto != nil {
			containerTara = t.Bruto - *t.Neto
		}
		respondwith.JSON(w, http.StatusOK, map[string]any{
			"id":            t.ID,
			"container":     containersOrEmpty(t.Containers),
			"bruto":         t.Bruto,
			"containerTara": containerTara,
			"neto":          netoOrNA(t.Neto),
		})
	default:
		result := map[string]any{
			"id":    t.ID,
			"truck": *t.Truck,
			"bruto": t.Bruto,
		}
		// truckTara and neto only appear once the truck has weighed out
		if t.TruckTara != nil {
			result["truckTara"] = *t.TruckTara
			result["neto"] = netoOrNA(t.Neto)
		}
		respondwith.JSON(w, http.StatusOK, result)
	}
}

var (
	referencedContainersQuery = sqlext.SimplifyWhitespace(`
		SELECT DISTINCT containers FROM transactions WHERE containers != ''
	`)
	registeredContainersQuery = sqlext.SimplifyWhitespace(`
		SELECT container_id FROM containers_registered
	`)
)

// ListUnknownContainers handles GET /unknown: all container ids that appear
// in transactions but have no registered tare yet.
func (p *v1API) ListUnknownContainers(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/unknown")

	registered := make(map[string]bool)
	err := sqlext.ForeachRow(p.DB, registeredContainersQuery, nil, func(rows *sql.Rows) error {
		var id string
		err := rows.Scan(&id)
		if err == nil {
			registered[id] = true
		}
		return err
	})
	if respondwith.ErrorText(w, err) {
		return
	}

	unknown := make(map[string]bool)
	err = sqlext.ForeachRow(p.DB, referencedContainersQuery, nil, func(rows *sql.Rows) error {
		var containers string
		err := rows.Scan(&containers)
		if err != nil {
			return err
		}
		for _, id := range core.SplitContainers(containers) {
			if !registered[id] {
				unknown[id] = true
			}
		}
		return nil
	})
	if respondwith.ErrorText(w, err) {
		return
	}

	result := make([]string, 0, len(unknown))
	for id := range unknown {
		result = append(result, id)
	}
	slices.Sort(result)
	respondwith.JSON(w, http.StatusOK, result)
}
