// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sapcc/go-api-declarations/bininfo"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/httpext"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/must"
	"github.com/sapcc/go-bits/osext"

	billingapi "github.com/weighops/weighbridge/internal/billing/api"
	billingdb "github.com/weighops/weighbridge/internal/billing/db"
	weightapi "github.com/weighops/weighbridge/internal/weight/api"
	weightdb "github.com/weighops/weighbridge/internal/weight/db"
	"github.com/weighops/weighbridge/internal/weight/ingest"
	"github.com/weighops/weighbridge/internal/weightclient"
)

func main() {
	bininfo.HandleVersionArgument()

	if len(os.Args) != 2 {
		printUsageAndExit()
	}
	taskName := os.Args[1]
	bininfo.SetTaskName(taskName)

	logg.ShowDebug = osext.GetenvBool("WEIGHBRIDGE_DEBUG")
	ctx := httpext.ContextWithSIGINT(context.Background(), 10*time.Second)

	switch taskName {
	case "serve-weight":
		taskServeWeight(ctx)
	case "serve-billing":
		taskServeBilling(ctx)
	default:
		printUsageAndExit()
	}
}

func printUsageAndExit() {
	fmt.Fprintf(os.Stderr, "usage: %s [serve-weight|serve-billing]\n", os.Args[0])
	os.Exit(1)
}

func taskServeWeight(ctx context.Context) {
	dbm := must.Return(weightdb.Init())

	go ingest.ReconcileJob(dbm, prometheus.DefaultRegisterer).Run(ctx)

	handler := httpapi.Compose(
		weightapi.NewV1API(dbm, time.Now),
	)
	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.Handle("/metrics", promhttp.Handler())

	listenAddress := osext.GetenvOrDefault("WEIGHT_API_LISTEN_ADDRESS", ":8080")
	must.Succeed(httpext.ListenAndServeContext(ctx, listenAddress, mux))
}

func taskServeBilling(ctx context.Context) {
	dbm := must.Return(billingdb.Init())

	handler := httpapi.Compose(
		billingapi.NewV1API(dbm, weightclient.NewClientFromEnv(), time.Now),
	)
	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.Handle("/metrics", promhttp.Handler())

	listenAddress := osext.GetenvOrDefault("BILLING_API_LISTEN_ADDRESS", ":8081")
	must.Succeed(httpext.ListenAndServeContext(ctx, listenAddress, mux))
}
