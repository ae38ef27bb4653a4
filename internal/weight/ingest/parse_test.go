// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/weighops/weighbridge/internal/weight/core"
)

func stageFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	err := os.WriteFile(path, []byte(contents), 0o666)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseCSVBatch(t *testing.T) {
	path := stageFile(t, "tares.csv", "id,kg\nC-1,100\n c-2 ,220\n")
	records, err := ParseTareFile(path)
	if err != nil {
		t.Fatal(err)
	}
	expected := []TareRecord{
		{ContainerID: "C-1", Weight: 100, Unit: core.UnitKilograms},
		{ContainerID: "C-2", Weight: 220, Unit: core.UnitKilograms},
	}
	if !reflect.DeepEqual(records, expected) {
		t.Errorf("expected %v, got %v", expected, records)
	}

	// the header unit applies to all rows
	path = stageFile(t, "tares.csv", "id,lbs\nK-8,500\n")
	records, err = ParseTareFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if records[0].Unit != core.UnitPounds {
		t.Errorf("expected lbs from header, got %s", records[0].Unit)
	}
}

func TestParseJSONBatch(t *testing.T) {
	path := stageFile(t, "tares.json", `[
		{"id": "C-1", "weight": 100, "unit": "kg"},
		{"id": "c-2", "weight": 220, "unit": "lbs"}
	]`)
	records, err := ParseTareFile(path)
	if err != nil {
		t.Fatal(err)
	}
	expected := []TareRecord{
		{ContainerID: "C-1", Weight: 100, Unit: core.UnitKilograms},
		{ContainerID: "C-2", Weight: 220, Unit: core.UnitPounds},
	}
	if !reflect.DeepEqual(records, expected) {
		t.Errorf("expected %v, got %v", expected, records)
	}
}

func TestParseBatchErrors(t *testing.T) {
	testCases := []struct {
		fileName string
		contents string
	}{
		{"tares.csv", "container,kg\nC-1,100\n"},    // wrong header
		{"tares.csv", "id,stone\nC-1,100\n"},        // bad unit
		{"tares.csv", "id,kg\nC-1,lots\n"},          // non-numeric weight
		{"tares.csv", "id,kg\nC-1,-5\n"},            // negative weight
		{"tares.csv", "id,kg\n ,100\n"},             // empty id
		{"tares.csv", "id,kg\nC-1,100,extra\n"},     // too many columns
		{"tares.json", `{"id": "C-1"}`},             // not an array
		{"tares.json", `[{"id": "C-1", "weight": 1.5, "unit": "kg"}]`}, // fractional weight
		{"tares.json", `[{"id": "C-1", "weight": 100, "unit": "stone"}]`},
		{"tares.xml", "<tares/>"}, // unsupported format
	}
	for _, tc := range testCases {
		_, err := ParseTareFile(stageFile(t, tc.fileName, tc.contents))
		if err == nil {
			t.Errorf("expected error for %s with contents %q", tc.fileName, tc.contents)
		}
	}

	_, err := ParseTareFile(filepath.Join(t.TempDir(), "missing.csv"))
	if err == nil {
		t.Error("expected error for missing file")
	}
}
