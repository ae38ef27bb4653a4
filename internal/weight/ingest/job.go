// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"time"

	gorp "github.com/go-gorp/gorp/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sapcc/go-bits/jobloop"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/sqlext"

	"github.com/weighops/weighbridge/internal/weight/datamodel"
)

// ReconcileJob is a jobloop.CronJob.
//
// The batch ingest recomputes pending net weights inline, so in the common
// case this job finds nothing to do. It catches rows left pending when an
// ingest was interrupted between the registry upsert and the recompute.
func ReconcileJob(dbm *gorp.DbMap, registerer prometheus.Registerer) jobloop.Job {
	return (&jobloop.CronJob{
		Metadata: jobloop.JobMetadata{
			ReadableName: "recompute pending net weights",
			CounterOpts: prometheus.CounterOpts{
				Name: "weighbridge_neto_reconciliation_runs",
				Help: "Counts runs of the deferred net weight reconciliation.",
			},
		},
		Interval: 3 * time.Minute,
		Task: func(_ context.Context, _ prometheus.Labels) error {
			return reconcileOnce(dbm)
		},
	}).Setup(registerer)
}

func reconcileOnce(dbm *gorp.DbMap) error {
	tx, err := dbm.Begin()
	if err != nil {
		return err
	}
	defer sqlext.RollbackUnlessCommitted(tx)

	resolved, err := datamodel.RecomputePendingNetos(tx)
	if err != nil {
		return err
	}
	if resolved > 0 {
		logg.Info("filled in net weight on %d transactions during reconciliation", resolved)
	}
	return tx.Commit()
}
