// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"
	"github.com/sapcc/go-bits/sqlext"

	"github.com/weighops/weighbridge/internal/billing/db"
)

type providerRequest struct {
	Name string `json:"name"`
}

// CreateProvider handles POST /provider.
func (p *v1API) CreateProvider(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/provider")
	var body providerRequest
	if !RequireJSON(w, r, &body) {
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "provider name is required")
		return
	}

	tx, err := p.DB.Begin()
	if respondwith.ErrorText(w, err) {
		return
	}
	defer sqlext.RollbackUnlessCommitted(tx)

	var count int
	err = tx.SelectOne(&count, `SELECT COUNT(*) FROM providers WHERE name = $1`, name)
	if respondwith.ErrorText(w, err) {
		return
	}
	if count > 0 {
		respondError(w, http.StatusConflict, fmt.Sprintf("provider %q already exists", name))
		return
	}

	provider := db.Provider{Name: name}
	err = tx.Insert(&provider)
	if respondwith.ErrorText(w, err) {
		return
	}
	err = tx.Commit()
	if respondwith.ErrorText(w, err) {
		return
	}

	respondwith.JSON(w, http.StatusCreated, map[string]any{
		"id":   provider.ID,
		"name": provider.Name,
	})
}

// RenameProvider handles PUT /provider/{id}.
func (p *v1API) RenameProvider(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/provider/:id")
	provider := p.FindProviderFromRequest(w, r)
	if provider == nil {
		return
	}

	var body providerRequest
	if !RequireJSON(w, r, &body) {
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "provider name is required")
		return
	}

	var count int
	err := p.DB.SelectOne(&count, `SELECT COUNT(*) FROM providers WHERE name = $1 AND id != $2`, name, provider.ID)
	if respondwith.ErrorText(w, err) {
		return
	}
	if count > 0 {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("provider %q already exists", name))
		return
	}

	provider.Name = name
	_, err = p.DB.Update(provider)
	if respondwith.ErrorText(w, err) {
		return
	}

	respondwith.JSON(w, http.StatusOK, map[string]any{
		"id":   provider.ID,
		"name": provider.Name,
	})
}
