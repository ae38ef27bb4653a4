// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/osext"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/weighops/weighbridge/internal/weight/ingest"
)

// BatchPath returns the staging directory for tare batch files.
func BatchPath() string {
	return osext.GetenvOrDefault("WEIGHT_BATCH_PATH", "./in")
}

// IngestTareBatch handles POST /batch-weight. The batch file must have been
// staged into the directory at $WEIGHT_BATCH_PATH beforehand; the request
// only names it.
func (p *v1API) IngestTareBatch(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/batch-weight")

	fileName := r.URL.Query().Get("file")
	if fileName == "" {
		respondFailure(w, http.StatusBadRequest, `query parameter "file" is required`)
		return
	}
	if strings.ContainsAny(fileName, `/\`) || strings.Contains(fileName, "..") {
		respondFailure(w, http.StatusBadRequest, "file must be a plain file name inside the staging directory")
		return
	}

	records, err := ingest.ParseTareFile(filepath.Join(BatchPath(), fileName))
	if err != nil {
		respondFailure(w, http.StatusBadRequest, fmt.Sprintf("cannot ingest %s: %s", fileName, err.Error()))
		return
	}

	result, err := ingest.Apply(p.DB, records)
	if respondwith.ErrorText(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("registered %d container tares from %s", result.Registered, fileName),
		"data":    result,
	})
}
