// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

// Package ratesheet parses the XLSX rate workbook that accounting uploads to
// the Billing service.
package ratesheet

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ScopeAll is the cell value that marks a rate as applying to all providers.
const ScopeAll = "ALL"

// Row is one parsed rate entry. A nil Scope means the rate applies to all
// providers.
type Row struct {
	Product string
	Rate    int64
	Scope   *int64
}

// Parse reads the first sheet of an XLSX workbook with the columns
// `Product, Rate, Scope`. Scope cells hold either ALL or a provider id.
// Any malformed row fails the parse as a whole; an upload is applied
// completely or not at all.
func Parse(r io.Reader) ([]Row, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("cannot open workbook: %w", err)
	}
	defer file.Close()

	sheetName := file.GetSheetName(0)
	if sheetName == "" {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := file.GetRows(sheetName)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("workbook sheet is empty")
	}

	header := rows[0]
	if len(header) < 3 || !strings.EqualFold(strings.TrimSpace(header[0]), "Product") ||
		!strings.EqualFold(strings.TrimSpace(header[1]), "Rate") ||
		!strings.EqualFold(strings.TrimSpace(header[2]), "Scope") {
		return nil, fmt.Errorf("unexpected header row %q (expected Product, Rate, Scope)", strings.Join(header, ", "))
	}

	result := make([]Row, 0, len(rows)-1)
	seen := make(map[string]bool)
	for idx, cells := range rows[1:] {
		lineNo := idx + 2
		if len(cells) == 0 {
			// trailing blank rows are common in hand-edited sheets
			continue
		}
		if len(cells) < 3 {
			return nil, fmt.Errorf("row %d is incomplete", lineNo)
		}

		product := strings.TrimSpace(cells[0])
		if product == "" {
			return nil, fmt.Errorf("row %d has no product", lineNo)
		}
		rate, err := strconv.ParseInt(strings.TrimSpace(cells[1]), 10, 64)
		if err != nil || rate < 0 {
			return nil, fmt.Errorf("row %d has invalid rate %q", lineNo, cells[1])
		}

		row := Row{Product: product, Rate: rate}
		scopeKey := ScopeAll
		scope := strings.TrimSpace(cells[2])
		if !strings.EqualFold(scope, ScopeAll) {
			providerID, err := strconv.ParseInt(scope, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d has invalid scope %q (expected ALL or a provider id)", lineNo, cells[2])
			}
			row.Scope = &providerID
			scopeKey = scope
		}

		// the same product may appear once globally and once per provider
		dupeKey := product + "\x00" + scopeKey
		if seen[dupeKey] {
			return nil, fmt.Errorf("row %d duplicates product %q for scope %s", lineNo, product, scopeKey)
		}
		seen[dupeKey] = true

		result = append(result, row)
	}
	return result, nil
}
