// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

package db

var sqlMigrations = map[string]string{
	"001_initial.down.sql": `
		DROP TABLE transactions;
		DROP TABLE containers_registered;
	`,
	"001_initial.up.sql": `
		CREATE TABLE transactions (
			id           BIGSERIAL  NOT NULL PRIMARY KEY,
			recorded_at  TIMESTAMP  NOT NULL DEFAULT NOW(),
			direction    TEXT       NOT NULL,
			truck        TEXT       DEFAULT NULL,
			containers   TEXT       NOT NULL DEFAULT '',
			bruto        BIGINT     NOT NULL,
			truck_tara   BIGINT     DEFAULT NULL,
			neto         BIGINT     DEFAULT NULL,
			produce      TEXT       NOT NULL DEFAULT 'na'
		);
		CREATE INDEX transactions_truck_idx ON transactions (truck);
		CREATE INDEX transactions_recorded_at_idx ON transactions (recorded_at);

		CREATE TABLE containers_registered (
			container_id  TEXT    NOT NULL PRIMARY KEY,
			weight        BIGINT  NOT NULL,
			unit          TEXT    NOT NULL
		);
	`,
}
