// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

// Package weightclient provides the typed HTTP client that the Billing
// service uses to query the Weigh engine.
package weightclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sapcc/go-bits/osext"

	"github.com/weighops/weighbridge/internal/util"
)

// ErrNotFound is returned when the Weigh engine reports 404 for the
// requested item or session.
var ErrNotFound = errors.New("not found in the weight service")

// UpstreamError covers transport failures and unexpected responses from the
// Weigh engine. The bill assembly treats these as partial failures and skips
// the affected items; other callers surface them.
type UpstreamError struct {
	Status int // 0 for transport errors
	Inner  error
}

// Error implements the builtin/error interface.
func (e UpstreamError) Error() string {
	if e.Inner != nil {
		return "weight service call failed: " + e.Inner.Error()
	}
	return fmt.Sprintf("weight service returned status %d", e.Status)
}

// Unwrap supports errors.Is/As on the wrapped transport error.
func (e UpstreamError) Unwrap() error {
	return e.Inner
}

// Client talks to the Weigh engine.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient builds a Client for the given endpoint. If httpClient is nil, a
// default client with a 5 second timeout is used; bill assembly fans out over
// many sessions and must not hang on a stuck upstream.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: httpClient,
	}
}

// NewClientFromEnv builds a Client for the endpoint in $WEIGHT_SERVICE_URL.
func NewClientFromEnv() *Client {
	return NewClient(osext.GetenvOrDefault("WEIGHT_SERVICE_URL", "http://localhost:8080"), nil)
}

// MaybeKilograms is an integer weight that deserializes the "na" sentinel
// into a nil Value.
type MaybeKilograms struct {
	Value *int64
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (m *MaybeKilograms) UnmarshalJSON(buf []byte) error {
	s := string(buf)
	if s == `"na"` || s == "null" {
		m.Value = nil
		return nil
	}
	var value int64
	err := json.Unmarshal(buf, &value)
	if err != nil {
		return err
	}
	m.Value = &value
	return nil
}

// Item is the Weigh engine's answer for one truck or container.
type Item struct {
	ID       string         `json:"id"`
	Tara     MaybeKilograms `json:"tara"`
	Sessions []int64        `json:"sessions"`
}

// Session is the Weigh engine's answer for one weighing session.
type Session struct {
	ID        int64          `json:"id"`
	Truck     string         `json:"truck"`
	Bruto     int64          `json:"bruto"`
	TruckTara MaybeKilograms `json:"truckTara"`
	Neto      MaybeKilograms `json:"neto"`
}

// Transaction is one row of the Weigh engine's transaction listing.
type Transaction struct {
	ID        int64          `json:"id"`
	Direction string         `json:"direction"`
	Bruto     int64          `json:"bruto"`
	Neto      MaybeKilograms `json:"neto"`
	Produce   string         `json:"produce"`
}

// GetItem queries GET /item/{id} for the given time window.
func (c *Client) GetItem(ctx context.Context, itemID string, from, to time.Time) (Item, error) {
	path := fmt.Sprintf("/item/%s?from=%s&to=%s",
		url.PathEscape(itemID), util.FormatCompactTime(from), util.FormatCompactTime(to))
	var item Item
	err := c.getJSON(ctx, path, &item)
	return item, err
}

// GetSession queries GET /session/{id}.
func (c *Client) GetSession(ctx context.Context, sessionID int64) (Session, error) {
	var session Session
	err := c.getJSON(ctx, fmt.Sprintf("/session/%d", sessionID), &session)
	return session, err
}

// ListTransactions queries GET /weight for the given time window and
// direction filter.
func (c *Client) ListTransactions(ctx context.Context, from, to time.Time, filter string) ([]Transaction, error) {
	path := fmt.Sprintf("/weight?from=%s&to=%s&filter=%s",
		util.FormatCompactTime(from), util.FormatCompactTime(to), url.QueryEscape(filter))
	var txns []Transaction
	err := c.getJSON(ctx, path, &txns)
	return txns, err
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return UpstreamError{Inner: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return UpstreamError{Status: resp.StatusCode}
	}

	err = json.NewDecoder(resp.Body).Decode(target)
	if err != nil {
		return UpstreamError{Inner: fmt.Errorf("while parsing response for GET %s: %w", path, err)}
	}
	return nil
}
