package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvad-hq/trending-seeder/internal/domain"
)

type recordingRunner struct {
	calls    int
	override *domain.Window
	outcome  domain.RunOutcome
	err      error
}

func (r *recordingRunner) run(_ context.Context, override *domain.Window) (domain.RunOutcome, error) {
	r.calls++
	r.override = override
	return r.outcome, r.err
}

func serve(t *testing.T, s *Server, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSeedSuccessReturnsOutcome(t *testing.T) {
	r := &recordingRunner{outcome: domain.RunOutcome{
		RunID: "run-1", Strategy: "bulk_csv", Status: domain.StatusOK, Date: "2024-01-02",
		Processed: 3, Inserted: 2, Skipped: 1,
	}}
	s := New(r.run, nil)

	rec := serve(t, s, http.MethodPost, SeedPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, r.override)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 2, body["inserted"])
	assert.EqualValues(t, 1, body["skipped"])
	assert.Equal(t, "2024-01-02", body["date"])
	assert.NotContains(t, body, "error")
}

func TestSeedDateOverride(t *testing.T) {
	r := &recordingRunner{outcome: domain.RunOutcome{Status: domain.StatusOK}}
	s := New(r.run, nil)

	rec := serve(t, s, http.MethodGet, SeedPath+"?date=2024-02-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, r.override)
	assert.Equal(t, "2024-02-03", r.override.Date)
}

func TestSeedMalformedDateIsBadRequest(t *testing.T) {
	r := &recordingRunner{}
	s := New(r.run, nil)

	rec := serve(t, s, http.MethodPost, SeedPath+"?date=02/03/2024", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, r.calls)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}

func TestSeedFailureReturns500WithError(t *testing.T) {
	err := &domain.ConfigurationError{Missing: []string{"YT_API_KEY"}}
	r := &recordingRunner{
		outcome: domain.RunOutcome{Status: domain.StatusFailed, Error: err.Error()},
		err:     err,
	}
	s := New(r.run, nil)

	rec := serve(t, s, http.MethodPost, SeedPath, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "YT_API_KEY")
	assert.Equal(t, domain.StatusFailed, body["status"])
}

func TestSeedErrorWithoutOutcomeErrorStillReportsIt(t *testing.T) {
	r := &recordingRunner{err: errors.New("boom")}
	s := New(r.run, nil)

	rec := serve(t, s, http.MethodGet, SeedPath, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "boom")
}

func TestPreflightIsBareSuccess(t *testing.T) {
	s := New((&recordingRunner{}).run, nil)

	rec := serve(t, s, http.MethodOptions, SeedPath, map[string]string{
		"Origin":                         "https://dashboard.example",
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": "authorization, content-type",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(t, s, http.MethodOptions, SeedPath, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestSeedResponseCarriesCORSHeader(t *testing.T) {
	r := &recordingRunner{outcome: domain.RunOutcome{Status: domain.StatusOK}}
	s := New(r.run, nil)

	rec := serve(t, s, http.MethodPost, SeedPath, map[string]string{"Origin": "https://dashboard.example"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthz(t *testing.T) {
	s := New((&recordingRunner{}).run, nil)
	rec := serve(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
