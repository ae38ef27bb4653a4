// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

package core

import "strings"

// NormalizeContainerID canonicalizes a container identifier. Surrounding
// whitespace is stripped and the id is uppercased; all lookups and all writes
// go through this, so "  c-35 " and "C-35" always refer to the same tare.
func NormalizeContainerID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// SplitContainers parses a comma-joined container list (the form used both in
// request bodies and in the `containers` column) into canonical ids. Empty
// fields are dropped; an empty or blank input yields nil.
func SplitContainers(joined string) []string {
	if strings.TrimSpace(joined) == "" {
		return nil
	}
	var ids []string
	for _, field := range strings.Split(joined, ",") {
		id := NormalizeContainerID(field)
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// JoinContainers renders the canonical comma-joined form of a container list.
func JoinContainers(ids []string) string {
	return strings.Join(ids, ",")
}
