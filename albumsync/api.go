// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

package albumsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
)

// TokenFunc supplies the bearer token for remote calls.
type TokenFunc func(ctx context.Context) (string, error)

// StatusError is returned when the remote service was reached but
// answered with a non-2xx status. Its presence distinguishes rejected
// requests from transport failures, which report as *url.Error.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Body)
}

// IsUnreachable reports whether err means the remote service could not
// be reached at all (as opposed to reached-and-rejected).
func IsUnreachable(err error) bool {
	var ue *url.Error
	return errors.As(err, &ue)
}

// API is the HTTP client for the remote record service.
type API struct {
	BaseURL string
	Token   TokenFunc
	HTTP    *http.Client

	logger *slog.Logger
}

// Page is one page of the remote record listing.
type Page struct {
	Items   []Album `json:"items"`
	HasMore bool    `json:"hasMore"`
}

// NewAPI creates a remote service client. A nil logger falls back to
// slog.Default().
func NewAPI(baseURL string, token TokenFunc, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{},
		logger:  logger,
	}
}

// List fetches one page of records, optionally filtered by artist and
// title.
func (a *API) List(ctx context.Context, page, limit int, artist, title string) (*Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if artist != "" {
		q.Set("artist", artist)
	}
	if title != "" {
		q.Set("title", title)
	}

	var out Page
	if err := a.do(ctx, http.MethodGet, "/api/item?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}
	return &out, nil
}

// Create stores a new record; the server assigns its identifier.
func (a *API) Create(ctx context.Context, album Album) (*Album, error) {
	var out Album
	if err := a.do(ctx, http.MethodPost, "/api/item", album, &out); err != nil {
		return nil, fmt.Errorf("failed to create album: %w", err)
	}
	return &out, nil
}

// Update replaces the record with album's identifier.
func (a *API) Update(ctx context.Context, album Album) (*Album, error) {
	var out Album
	if err := a.do(ctx, http.MethodPut, "/api/item/"+url.PathEscape(album.ID), album, &out); err != nil {
		return nil, fmt.Errorf("failed to update album %s: %w", album.ID, err)
	}
	return &out, nil
}

// Delete removes the record with the given identifier.
func (a *API) Delete(ctx context.Context, id string) error {
	if err := a.do(ctx, http.MethodDelete, "/api/item/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("failed to delete album %s: %w", id, err)
	}
	return nil
}

// Artists fetches the distinct artist list.
func (a *API) Artists(ctx context.Context) ([]string, error) {
	var out []string
	if err := a.do(ctx, http.MethodGet, "/api/item/artists", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to fetch artists: %w", err)
	}
	return out, nil
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	token, err := a.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get auth token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return &StatusError{Code: resp.StatusCode, Body: string(data)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Login obtains a bearer token from the remote service's auth endpoint.
// It is the one unauthenticated call, so it lives outside API.
func Login(ctx context.Context, client *http.Client, baseURL, username, password string) (string, error) {
	if client == nil {
		client = &http.Client{}
	}
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", fmt.Errorf("failed to marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", &StatusError{Code: resp.StatusCode, Body: string(data)}
	}

	var auth struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}
	return auth.Token, nil
}
