package spotify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cratefm/model"
)

func TestNewClientValidatesBaseURL(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.Error(t, err)

	_, err = NewClient(ClientConfig{APIURL: "not a url"})
	assert.Error(t, err)

	client, err := NewClient(ClientConfig{APIURL: "https://api.example.com/v1"})
	require.NoError(t, err)
	assert.Equal(t, 0, client.RequestCount())
}

func TestRequestCountAndReset(t *testing.T) {
	source := newFakeSource(t)
	source.addTrack("t1", "One", "Artist", 200000, 50)
	client := source.client(t)

	_, err := client.SearchTracks(context.Background(), "anything", 5)
	require.NoError(t, err)
	_, err = client.GetTrack(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, 2, client.RequestCount())

	client.ResetRequestCount()
	assert.Equal(t, 0, client.RequestCount())
}

func TestTokenRefreshedOnlyWhenNearExpiry(t *testing.T) {
	source := newFakeSource(t)
	source.addTrack("t1", "One", "Artist", 200000, 50)
	client := source.client(t)

	_, err := client.SearchTracks(context.Background(), "a", 5)
	require.NoError(t, err)
	_, err = client.SearchTracks(context.Background(), "b", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, source.tokenRequests, "valid token should be reused")

	// Force the token inside the 5-minute refresh buffer.
	client.mu.Lock()
	client.tokenExpiry = time.Now().Add(time.Minute)
	client.mu.Unlock()

	_, err = client.SearchTracks(context.Background(), "c", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, source.tokenRequests)
}

func TestRetryOnServerErrorsOnly(t *testing.T) {
	var searchCalls, failuresLeft int

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.SpotifyTokenResponse{AccessToken: "tok", ExpiresIn: 3600})
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		searchCalls++
		if failuresLeft > 0 {
			failuresLeft--
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(model.SpotifySearchResponse{})
	})
	mux.HandleFunc("/tracks/", func(w http.ResponseWriter, r *http.Request) {
		searchCalls++
		w.WriteHeader(http.StatusBadRequest)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		APIURL:     server.URL,
		AuthURL:    server.URL + "/token",
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)

	// Two 5xx responses, then success: retried to completion.
	failuresLeft = 2
	_, err = client.SearchTracks(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Equal(t, 3, searchCalls)

	// A 4xx response is semantic and must not be retried.
	searchCalls = 0
	_, err = client.GetTrack(context.Background(), "bad-id")
	require.Error(t, err)
	assert.Equal(t, 1, searchCalls)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.False(t, apiErr.Transient())
}

func TestRetriesExhaustedSurfaceError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.SpotifyTokenResponse{AccessToken: "tok", ExpiresIn: 3600})
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		APIURL:     server.URL,
		AuthURL:    server.URL + "/token",
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)

	_, err = client.SearchTracks(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestThrottleDelaysOverCeiling(t *testing.T) {
	source := newFakeSource(t)
	source.addTrack("t1", "One", "Artist", 200000, 50)

	client, err := NewClient(ClientConfig{
		APIURL:    source.server.URL,
		AuthURL:   source.server.URL + "/token",
		RateLimit: 20, // 50ms between requests
	})
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.GetTrack(context.Background(), "t1")
		require.NoError(t, err)
	}
	// Three requests at 20 rps cannot complete faster than ~100ms.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, 3, client.RequestCount())
}

func TestThrottleHonorsContextCancellation(t *testing.T) {
	source := newFakeSource(t)
	source.addTrack("t1", "One", "Artist", 200000, 50)

	client, err := NewClient(ClientConfig{
		APIURL:    source.server.URL,
		AuthURL:   source.server.URL + "/token",
		RateLimit: 0.2, // 5s between requests
	})
	require.NoError(t, err)

	_, err = client.GetTrack(context.Background(), "t1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.GetTrack(ctx, "t1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCapSeeds(t *testing.T) {
	g, a, tr := capSeeds(
		[]string{"techno", "house", "trance"},
		[]string{"a1", "a2", "a3"},
		[]string{"t1"},
	)
	assert.Len(t, g, 3)
	assert.Len(t, a, 2)
	assert.Len(t, tr, 0)

	g, a, tr = capSeeds(nil, []string{"a1"}, []string{"t1"})
	assert.Len(t, g, 0)
	assert.Len(t, a, 1)
	assert.Len(t, tr, 1)
}

func TestDetectGenre(t *testing.T) {
	tests := []struct {
		query, artist, expected string
	}{
		{"melodic techno set", "", "techno"},
		{"liquid dnb", "", "drum and bass"},
		{"best rap 2020", "", "hip hop"},
		{"", "Charlotte de Witte", "techno"},
		{"", "Bonobo", "downtempo"},
		{"", "Unknown Artist", "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, detectGenre(tt.query, tt.artist),
			"query %q artist %q", tt.query, tt.artist)
	}
}
