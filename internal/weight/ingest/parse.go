// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

// Package ingest implements the container tare batch ingest: parsing the
// staged CSV/JSON files, upserting the tare registry and re-running the
// deferred net weight computation.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/weighops/weighbridge/internal/weight/core"
)

// TareRecord is one container calibration entry from a batch file.
type TareRecord struct {
	ContainerID string
	Weight      int64
	Unit        core.Unit
}

// ParseTareFile parses a staged batch file. The format is chosen by file
// extension. Any structural violation fails the parse as a whole; a batch is
// applied completely or not at all.
func ParseTareFile(path string) ([]TareRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return parseCSV(file)
	case ".json":
		return parseJSON(file)
	default:
		return nil, fmt.Errorf("unsupported batch file type %q (expected .csv or .json)", ext)
	}
}

// parseCSV reads the two-column layout `id,<unit>` where the unit in the
// header applies to all rows.
func parseCSV(r io.Reader) ([]TareRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("while reading CSV header: %w", err)
	}
	if strings.ToLower(strings.TrimSpace(header[0])) != "id" {
		return nil, fmt.Errorf("unexpected CSV header %q (expected \"id,<unit>\")", strings.Join(header, ","))
	}
	unit := core.Unit(strings.ToLower(strings.TrimSpace(header[1])))
	if !unit.IsValid() {
		return nil, fmt.Errorf("invalid unit %q in CSV header (expected kg or lbs)", header[1])
	}

	var records []TareRecord
	for line := 2; ; line++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while reading CSV line %d: %w", line, err)
		}
		record, err := buildRecord(fields[0], fields[1], unit)
		if err != nil {
			return nil, fmt.Errorf("invalid CSV line %d: %w", line, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// parseJSON reads the layout `[{id, weight, unit}, ...]` where each entry
// carries its own unit.
func parseJSON(r io.Reader) ([]TareRecord, error) {
	var entries []struct {
		ID     string `json:"id"`
		Weight int64  `json:"weight"`
		Unit   string `json:"unit"`
	}
	err := json.NewDecoder(r).Decode(&entries)
	if err != nil {
		return nil, fmt.Errorf("while parsing JSON batch file: %w", err)
	}

	records := make([]TareRecord, 0, len(entries))
	for idx, entry := range entries {
		unit := core.Unit(strings.ToLower(strings.TrimSpace(entry.Unit)))
		if !unit.IsValid() {
			return nil, fmt.Errorf("invalid JSON entry %d: invalid unit %q (expected kg or lbs)", idx, entry.Unit)
		}
		record, err := buildRecord(entry.ID, strconv.FormatInt(entry.Weight, 10), unit)
		if err != nil {
			return nil, fmt.Errorf("invalid JSON entry %d: %w", idx, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func buildRecord(id, weight string, unit core.Unit) (TareRecord, error) {
	containerID := core.NormalizeContainerID(id)
	if containerID == "" {
		return TareRecord{}, errors.New("container id is empty")
	}
	weightValue, err := strconv.ParseInt(strings.TrimSpace(weight), 10, 64)
	if err != nil || weightValue <= 0 {
		return TareRecord{}, fmt.Errorf("invalid weight %q (expected a positive integer)", weight)
	}
	return TareRecord{ContainerID: containerID, Weight: weightValue, Unit: unit}, nil
}
