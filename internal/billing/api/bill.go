// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"

	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/weighops/weighbridge/internal/billing/reports"
	"github.com/weighops/weighbridge/internal/util"
)

// GetBill handles GET /bill/{id}.
func (p *v1API) GetBill(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/bill/:id")
	provider := p.FindProviderFromRequest(w, r)
	if provider == nil {
		return
	}

	now := p.timeNow()
	query := r.URL.Query()
	from, err := util.ParseCompactTime(query.Get("from"), util.StartOfMonth(now))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := util.ParseCompactTime(query.Get("to"), now)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	bill, err := reports.GetBill(r.Context(), p.DB, p.WeightClient, *provider, from, to)
	if respondwith.ErrorText(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, bill)
}
