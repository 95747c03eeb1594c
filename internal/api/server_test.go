package api_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldbooks/cashrecon/internal/api"
	"github.com/fieldbooks/cashrecon/internal/api/dto"
	"github.com/fieldbooks/cashrecon/internal/application/service"
	"github.com/fieldbooks/cashrecon/internal/domain/reconcile"
	"github.com/fieldbooks/cashrecon/internal/infrastructure/storage"
)

func newTestServer(t *testing.T) (*api.Server, *storage.MockRepository) {
	t.Helper()
	repo := storage.NewMockRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reconService := service.NewReconService(reconcile.DefaultConfig(), 2, repo, logger)
	server := api.NewServer(api.DefaultConfig(), repo, reconService, logger)
	return server, repo
}

func seedServerRun(t *testing.T, repo *storage.MockRepository, id string) {
	t.Helper()
	run := &storage.ReconRun{ID: id, StartedAt: time.Now(), Status: storage.RunStatusRunning, PaymentCount: 2}
	require.NoError(t, repo.SaveRun(run))
	require.NoError(t, repo.CompleteRun(id, run))
}

func TestServer_HealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.HealthResponse
	err := json.NewDecoder(rec.Body).Decode(&response)
	require.NoError(t, err)
	assert.Equal(t, "ok", response.Status)
}

func TestServer_RunsEndpoints(t *testing.T) {
	t.Run("GET /api/runs returns runs", func(t *testing.T) {
		server, repo := newTestServer(t)
		seedServerRun(t, repo, "run-1")

		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		rec := httptest.NewRecorder()

		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RunListResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)
		assert.Equal(t, 1, response.Count)
	})

	t.Run("GET /api/runs/:id returns single run", func(t *testing.T) {
		server, repo := newTestServer(t)
		seedServerRun(t, repo, "run-2")

		req := httptest.NewRequest(http.MethodGet, "/api/runs/run-2", nil)
		rec := httptest.NewRecorder()

		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RunResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)
		assert.Equal(t, "run-2", response.ID)
	})

	t.Run("GET /api/runs/:id returns 404 for missing run", func(t *testing.T) {
		server, _ := newTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil)
		rec := httptest.NewRecorder()

		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServer_ReconcileFlow(t *testing.T) {
	server, _ := newTestServer(t)

	body := `{
		"payments": [
			{"id": "PAY_1", "amount_cents": 250000, "fee_cents": 7525, "created_at": "2025-06-15T10:00:00Z"},
			{"id": "PAY_2", "amount_cents": 43210, "created_at": "2025-06-15T10:00:00Z"}
		],
		"invoices": [
			{"id": "INV_1", "job_id": "JOB_1", "amount": "2500.00", "paid_date": "2025-06-14"}
		]
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var started dto.StartReconcileResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))
	require.NotEmpty(t, started.JobID)

	require.Eventually(t, func() bool {
		statusRec := httptest.NewRecorder()
		server.Router().ServeHTTP(statusRec,
			httptest.NewRequest(http.MethodGet, "/api/reconcile/"+started.JobID, nil))

		var job dto.ReconJobResponse
		if err := json.NewDecoder(statusRec.Body).Decode(&job); err != nil {
			return false
		}
		return job.Status == string(service.StatusCompleted)
	}, 5*time.Second, 10*time.Millisecond)

	// The persisted run and its matches are visible through the API
	runRec := httptest.NewRecorder()
	server.Router().ServeHTTP(runRec,
		httptest.NewRequest(http.MethodGet, "/api/runs/"+started.JobID, nil))
	assert.Equal(t, http.StatusOK, runRec.Code)

	matchesRec := httptest.NewRecorder()
	server.Router().ServeHTTP(matchesRec,
		httptest.NewRequest(http.MethodGet, "/api/matches?run_id="+started.JobID, nil))
	assert.Equal(t, http.StatusOK, matchesRec.Code)

	var matches dto.MatchListResponse
	require.NoError(t, json.NewDecoder(matchesRec.Body).Decode(&matches))
	assert.Equal(t, 2, matches.Total)

	// The unmatched payment lands in the review queue
	queueRec := httptest.NewRecorder()
	server.Router().ServeHTTP(queueRec,
		httptest.NewRequest(http.MethodGet, "/api/review", nil))
	assert.Equal(t, http.StatusOK, queueRec.Code)

	var queue dto.MatchListResponse
	require.NoError(t, json.NewDecoder(queueRec.Body).Decode(&queue))
	require.Equal(t, 1, queue.Total)
	assert.Equal(t, "PAY_2", queue.Matches[0].PaymentID)

	// Stats reflect the run
	statsRec := httptest.NewRecorder()
	server.Router().ServeHTTP(statsRec,
		httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusOK, statsRec.Code)

	var stats dto.StatsResponse
	require.NoError(t, json.NewDecoder(statsRec.Body).Decode(&stats))
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 2, stats.TotalMatches)
	assert.Equal(t, 1, stats.PendingReview)
}

func TestServer_CORS(t *testing.T) {
	server, _ := newTestServer(t)

	t.Run("sets CORS headers for allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()

		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("handles OPTIONS preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/matches", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()

		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
