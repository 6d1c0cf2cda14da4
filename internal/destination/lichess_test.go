package destination

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportSendsFormAndToken(t *testing.T) {
	var gotPGN, gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		r.ParseForm()
		gotPGN = r.PostForm.Get("pgn")
		w.Header().Set("Location", "https://lichess.org/abcd1234")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/", Token: "secret"})
	res, err := c.Import(context.Background(), "[Event \"Live Chess\"]\n\n1. e4 1-0")
	require.NoError(t, err)

	assert.Equal(t, "/api/import", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "[Event \"Live Chess\"]\n\n1. e4 1-0", gotPGN)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "https://lichess.org/abcd1234", res.Location)
}

func TestImportRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL, Token: "t"}).Import(context.Background(), "x")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.NotErrorIs(t, err, ErrTransport)
}

func TestImportOtherFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Invalid PGN"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL, Token: "t"}).Import(context.Background(), "x")
	require.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "Invalid PGN")
}

func TestImportMissingToken(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://127.0.0.1:1"}).Import(context.Background(), "x")
	assert.ErrorIs(t, err, ErrTransport)
}
