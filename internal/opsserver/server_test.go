package opsserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	waifuwarservice "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/application"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReader struct {
	roster    *waifuwartypes.BracketRoster
	divisions []waifuwartypes.Division
	err       error
}

func (s stubReader) ListRoster(context.Context, int64) (*waifuwartypes.BracketRoster, error) {
	return s.roster, s.err
}

func (s stubReader) ListDivisions(context.Context, int64) ([]waifuwartypes.Division, error) {
	return s.divisions, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func do(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := do(t, New(":0", discardLogger()), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]Check
		wantStatus int
		wantReport map[string]string
	}{
		{
			name: "all ready",
			checks: map[string]Check{
				"postgres": func(context.Context) error { return nil },
				"nats":     func(context.Context) error { return nil },
			},
			wantStatus: http.StatusOK,
			wantReport: map[string]string{"postgres": "ok", "nats": "ok"},
		},
		{
			name: "one failing",
			checks: map[string]Check{
				"postgres": func(context.Context) error { return nil },
				"nats":     func(context.Context) error { return errors.New("disconnected") },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantReport: map[string]string{"postgres": "ok", "nats": "disconnected"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, New(":0", discardLogger(), WithReadiness(tt.checks)), "/readyz")
			assert.Equal(t, tt.wantStatus, rec.Code)

			var got map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.wantReport, got)
		})
	}
}

func TestOptionalRoutes(t *testing.T) {
	s := New(":0", discardLogger())
	assert.Equal(t, http.StatusNotFound, do(t, s, "/readyz").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, "/metrics").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, "/api/brackets/1/").Code)
}

func TestMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "waifu_bot_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	rec := do(t, New(":0", discardLogger(), WithMetrics(registry)), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "waifu_bot_test_total 1"))
}

func TestBracketViews(t *testing.T) {
	roster := &waifuwartypes.BracketRoster{
		Bracket: waifuwartypes.Bracket{ID: 7, Name: "Spring", Status: waifuwartypes.StatusVotable},
		Slots: []waifuwartypes.RosterSlot{
			{Position: 1, Entrant: waifuwartypes.Entrant{Name: "Rem"}},
			{Position: 2, Entrant: waifuwartypes.Entrant{Name: "Holo"}},
		},
	}
	divisions := []waifuwartypes.Division{{BracketID: 7, Number: 1, Left: roster.Slots[0], Right: roster.Slots[1], LeftVotes: 3, RightVotes: 1}}

	tests := []struct {
		name       string
		reader     stubReader
		path       string
		wantStatus int
	}{
		{name: "roster", reader: stubReader{roster: roster}, path: "/api/brackets/7/", wantStatus: http.StatusOK},
		{name: "divisions", reader: stubReader{divisions: divisions}, path: "/api/brackets/7/divisions", wantStatus: http.StatusOK},
		{name: "bad id", reader: stubReader{}, path: "/api/brackets/seven/", wantStatus: http.StatusBadRequest},
		{
			name:       "missing bracket",
			reader:     stubReader{err: &waifuwarservice.NotFoundError{Kind: "bracket", Key: "7"}},
			path:       "/api/brackets/7/",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "domain error",
			reader:     stubReader{err: waifuwarservice.ErrBracketComplete},
			path:       "/api/brackets/7/divisions",
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "infrastructure error",
			reader:     stubReader{err: errors.New("connection reset")},
			path:       "/api/brackets/7/divisions",
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, New(":0", discardLogger(), WithBrackets(tt.reader)), tt.path)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}

	t.Run("roster body", func(t *testing.T) {
		rec := do(t, New(":0", discardLogger(), WithBrackets(stubReader{roster: roster})), "/api/brackets/7/")
		var got waifuwartypes.BracketRoster
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "Spring", got.Bracket.Name)
		assert.Len(t, got.Slots, 2)
	})
}
