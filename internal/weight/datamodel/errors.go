// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

// Package datamodel contains the DB-level logic of the Weigh engine: the
// per-truck recording state machine and the deferred net weight computation.
// All functions expect to run inside a transaction owned by the caller.
package datamodel

// ValidationError is a request that can never succeed as given (missing or
// malformed field, rule violation that `force` cannot override). The API
// layer renders it as 400.
type ValidationError struct {
	Message string
}

// Error implements the builtin/error interface.
func (e ValidationError) Error() string {
	return e.Message
}

// ConflictError is a state machine violation that the client can resolve by
// repeating the request with the force flag. The API layer renders it as 409.
type ConflictError struct {
	PriorTransactionID int64
	Message            string
}

// Error implements the builtin/error interface.
func (e ConflictError) Error() string {
	return e.Message
}

// NotFoundError is a reference to a truck or session that does not exist in
// the required state. The API layer renders it as 404.
type NotFoundError struct {
	Message string
}

// Error implements the builtin/error interface.
func (e NotFoundError) Error() string {
	return e.Message
}
