// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

package db

var sqlMigrations = map[string]string{
	"001_initial.down.sql": `
		DROP TABLE rates;
		DROP TABLE trucks;
		DROP TABLE providers;
	`,
	"001_initial.up.sql": `
		CREATE TABLE providers (
			id    BIGSERIAL  NOT NULL PRIMARY KEY,
			name  TEXT       NOT NULL UNIQUE
		);

		CREATE TABLE trucks (
			id           TEXT    NOT NULL PRIMARY KEY,
			provider_id  BIGINT  NOT NULL REFERENCES providers ON DELETE RESTRICT
		);

		CREATE TABLE rates (
			product_id  TEXT    NOT NULL,
			rate        BIGINT  NOT NULL DEFAULT 0,
			scope       BIGINT  DEFAULT NULL REFERENCES providers ON DELETE RESTRICT
		);
		CREATE UNIQUE INDEX rates_product_scope_idx ON rates (product_id, COALESCE(scope, -1));
	`,
}
