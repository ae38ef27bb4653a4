// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

// Package core contains the value vocabulary shared by the Weigh engine's
// storage, ingest and API layers.
package core

import "math"

// Unit is a weight unit accepted on scale readings and tare registrations.
type Unit string

const (
	// UnitKilograms is the canonical storage unit.
	UnitKilograms Unit = "kg"
	// UnitPounds is accepted on input and converted on the way in.
	UnitPounds Unit = "lbs"
)

// poundsToKilograms is deliberately low-precision: all historical records
// were produced with this factor and reports must stay consistent with them.
const poundsToKilograms = 0.454

// IsValid checks if this value is one of the known units.
func (u Unit) IsValid() bool {
	return u == UnitKilograms || u == UnitPounds
}

// ToKilograms converts a weight given in this unit into kilograms, rounding
// to the nearest whole kilogram.
func (u Unit) ToKilograms(weight int64) int64 {
	if u == UnitPounds {
		return int64(math.Round(float64(weight) * poundsToKilograms))
	}
	return weight
}
