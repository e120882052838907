// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

package albumsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, v any) *http.Response {
	data, _ := json.Marshal(v)
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(string(data))),
	}
}

func newTestAPI(rt roundTripFunc) *API {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	api := NewAPI("http://sync.test", func(context.Context) (string, error) { return "tok-1", nil }, logger)
	api.HTTP = &http.Client{Transport: rt}
	return api
}

func TestListBuildsQueryAndAuthHeader(t *testing.T) {
	var got *http.Request
	api := newTestAPI(func(r *http.Request) (*http.Response, error) {
		got = r
		return jsonResponse(http.StatusOK, Page{Items: []Album{{ID: "1"}}, HasMore: true}), nil
	})

	page, err := api.List(context.Background(), 2, 10, "Kraftwerk", "auto")
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	require.Len(t, page.Items, 1)

	assert.Equal(t, "/api/item", got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "10", q.Get("limit"))
	assert.Equal(t, "Kraftwerk", q.Get("artist"))
	assert.Equal(t, "auto", q.Get("title"))
	assert.Equal(t, "Bearer tok-1", got.Header.Get("Authorization"))
}

func TestListOmitsEmptyFilters(t *testing.T) {
	var got *http.Request
	api := newTestAPI(func(r *http.Request) (*http.Response, error) {
		got = r
		return jsonResponse(http.StatusOK, Page{}), nil
	})

	_, err := api.List(context.Background(), 1, 10, "", "")
	require.NoError(t, err)
	assert.False(t, got.URL.Query().Has("artist"))
	assert.False(t, got.URL.Query().Has("title"))
}

func TestCreateAndUpdateRoutes(t *testing.T) {
	var method, path string
	api := newTestAPI(func(r *http.Request) (*http.Response, error) {
		method, path = r.Method, r.URL.Path
		var album Album
		require.NoError(t, json.NewDecoder(r.Body).Decode(&album))
		album.ID = "42"
		return jsonResponse(http.StatusOK, album), nil
	})

	created, err := api.Create(context.Background(), Album{Title: "A"})
	require.NoError(t, err)
	assert.Equal(t, "POST", method)
	assert.Equal(t, "/api/item", path)
	assert.Equal(t, "42", created.ID)

	updated, err := api.Update(context.Background(), Album{ID: "42", Title: "B"})
	require.NoError(t, err)
	assert.Equal(t, "PUT", method)
	assert.Equal(t, "/api/item/42", path)
	assert.Equal(t, "B", updated.Title)
}

func TestDeleteRoute(t *testing.T) {
	var method, path string
	api := newTestAPI(func(r *http.Request) (*http.Response, error) {
		method, path = r.Method, r.URL.Path
		return &http.Response{StatusCode: http.StatusNoContent, Body: io.NopCloser(strings.NewReader(""))}, nil
	})

	require.NoError(t, api.Delete(context.Background(), "42"))
	assert.Equal(t, "DELETE", method)
	assert.Equal(t, "/api/item/42", path)
}

func TestArtists(t *testing.T) {
	api := newTestAPI(func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, "/api/item/artists", r.URL.Path)
		return jsonResponse(http.StatusOK, []string{"Kraftwerk", "Nina Simone"}), nil
	})

	artists, err := api.Artists(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Kraftwerk", "Nina Simone"}, artists)
}

func TestNonOKStatusIsStatusError(t *testing.T) {
	api := newTestAPI(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusUnauthorized,
			Body:       io.NopCloser(strings.NewReader("invalid token")),
		}, nil
	})

	_, err := api.Create(context.Background(), Album{Title: "A"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.False(t, IsUnreachable(err))
}

func TestTransportErrorIsUnreachable(t *testing.T) {
	api := newTestAPI(func(r *http.Request) (*http.Response, error) {
		return nil, fmt.Errorf("connection refused")
	})

	_, err := api.Create(context.Background(), Album{Title: "A"})
	require.Error(t, err)
	assert.True(t, IsUnreachable(err))

	var se *StatusError
	assert.False(t, errors.As(err, &se))
}
