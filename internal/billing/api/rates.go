// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"bytes"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/osext"
	"github.com/sapcc/go-bits/respondwith"
	"github.com/sapcc/go-bits/sqlext"

	"github.com/weighops/weighbridge/internal/billing/ratesheet"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// RatesArtifactPath returns where the most recently uploaded rate workbook
// is kept for later download.
func RatesArtifactPath() string {
	return osext.GetenvOrDefault("BILLING_RATES_PATH", "./in/rates.xlsx")
}

var insertRateQuery = sqlext.SimplifyWhitespace(`
	INSERT INTO rates (product_id, rate, scope) VALUES ($1, $2, $3)
`)

// UploadRates handles POST /rates. The upload replaces the whole rate table
// and stores the workbook verbatim for GET /rates.
func (p *v1API) UploadRates(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/rates")

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, `multipart field "file" is required`)
		return
	}
	defer file.Close()

	// the workbook is both parsed and stored verbatim, so buffer it
	buf, err := io.ReadAll(file)
	if respondwith.ErrorText(w, err) {
		return
	}
	rows, err := ratesheet.Parse(bytes.NewReader(buf))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := p.DB.Begin()
	if respondwith.ErrorText(w, err) {
		return
	}
	defer sqlext.RollbackUnlessCommitted(tx)

	for _, row := range rows {
		if row.Scope == nil {
			continue
		}
		exists, err := p.providerExists(tx, *row.Scope)
		if respondwith.ErrorText(w, err) {
			return
		}
		if !exists {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("scope %d does not refer to an existing provider", *row.Scope))
			return
		}
	}

	_, err = tx.Exec(`DELETE FROM rates`)
	if respondwith.ErrorText(w, err) {
		return
	}
	err = sqlext.WithPreparedStatement(tx, insertRateQuery, func(stmt *sql.Stmt) error {
		for _, row := range rows {
			_, err := stmt.Exec(row.Product, row.Rate, row.Scope)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if respondwith.ErrorText(w, err) {
		return
	}

	// the previous artifact must keep serving GET /rates until the new rates
	// are committed: stage the workbook next to it and only rename it into
	// place once the commit went through
	artifactPath := RatesArtifactPath()
	err = os.MkdirAll(filepath.Dir(artifactPath), 0777)
	if respondwith.ErrorText(w, err) {
		return
	}
	stagedPath := artifactPath + ".tmp"
	err = os.WriteFile(stagedPath, buf, 0666)
	if err != nil {
		os.Remove(stagedPath) //nolint:errcheck
		respondwith.ErrorText(w, err)
		return
	}

	err = tx.Commit()
	if err != nil {
		os.Remove(stagedPath) //nolint:errcheck
		respondwith.ErrorText(w, err)
		return
	}
	err = os.Rename(stagedPath, artifactPath)
	if respondwith.ErrorText(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusCreated, map[string]string{
		"message": fmt.Sprintf("uploaded %d rates", len(rows)),
	})
}

// DownloadRates handles GET /rates: it serves the workbook from the most
// recent upload byte-for-byte.
func (p *v1API) DownloadRates(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/rates")

	buf, err := os.ReadFile(RatesArtifactPath())
	if os.IsNotExist(err) {
		respondError(w, http.StatusNotFound, "no rates have been uploaded yet")
		return
	}
	if respondwith.ErrorText(w, err) {
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="rates.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf) //nolint:errcheck
}
