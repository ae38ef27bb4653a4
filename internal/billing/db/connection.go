// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

// Package db contains the schema and connection handling for the Billing
// service's database. Billing and the Weigh engine deliberately run on
// separate schemas; everything Billing knows about weighings comes in over
// the Weigh engine's HTTP API.
package db

import (
	"database/sql"
	"net/url"
	"os"
	"time"

	"github.com/dlmiddlecote/sqlstats"
	gorp "github.com/go-gorp/gorp/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sapcc/go-bits/easypg"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/osext"
	"github.com/sapcc/go-bits/sqlext"
)

// Configuration returns the easypg.Configuration object that func Init()
// needs to initialize the DB connection.
func Configuration() easypg.Configuration {
	return easypg.Configuration{
		Migrations: sqlMigrations,
	}
}

// Init initializes the connection to the billing database, retrying with a
// fixed budget while the database is still coming up.
func Init() (*gorp.DbMap, error) {
	dbURL, err := easypg.URLFrom(easypg.URLParts{
		HostName:          osext.GetenvOrDefault("BILLING_DB_HOSTNAME", "localhost"),
		Port:              osext.GetenvOrDefault("BILLING_DB_PORT", "5432"),
		UserName:          osext.GetenvOrDefault("BILLING_DB_USERNAME", "postgres"),
		Password:          os.Getenv("BILLING_DB_PASSWORD"),
		ConnectionOptions: os.Getenv("BILLING_DB_CONNECTION_OPTIONS"),
		DatabaseName:      osext.GetenvOrDefault("BILLING_DB_NAME", "billing"),
	})
	if err != nil {
		return nil, err
	}

	dbConn, err := connectWithRetry(dbURL)
	if err != nil {
		return nil, err
	}
	prometheus.MustRegister(sqlstats.NewStatsCollector("billing", dbConn))
	return initORM(dbConn), nil
}

// InitFromURL initializes the DB connection for tests.
func InitFromURL(dbURL *url.URL) (*gorp.DbMap, error) {
	dbConn, err := easypg.Connect(*dbURL, Configuration())
	if err != nil {
		return nil, err
	}
	return initORM(dbConn), nil
}

func connectWithRetry(dbURL url.URL) (dbConn *sql.DB, err error) {
	const attempts = 30
	for i := range attempts {
		if i > 0 {
			time.Sleep(2 * time.Second)
		}
		dbConn, err = easypg.Connect(dbURL, Configuration())
		if err == nil {
			return dbConn, nil
		}
		logg.Info("cannot connect to billing database yet (attempt %d/%d): %s", i+1, attempts, err.Error())
	}
	return nil, err
}

func initORM(dbConn *sql.DB) *gorp.DbMap {
	dbConn.SetMaxOpenConns(16)

	dbMap := &gorp.DbMap{Db: dbConn, Dialect: gorp.PostgresDialect{}}
	initGorp(dbMap)
	return dbMap
}

// Interface provides the common methods that both SQL connections and
// transactions implement.
type Interface interface {
	// from database/sql
	sqlext.Executor

	// from github.com/go-gorp/gorp
	Insert(args ...any) error
	Update(args ...any) (int64, error)
	Delete(args ...any) (int64, error)
	Select(i any, query string, args ...any) ([]any, error)
	SelectOne(holder any, query string, args ...any) error
}
