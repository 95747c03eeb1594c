package handlers_test

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

	"github.com/fieldbooks/cashrecon/internal/api/dto"
	"github.com/fieldbooks/cashrecon/internal/api/handlers"
	"github.com/fieldbooks/cashrecon/internal/application/service"
	"github.com/fieldbooks/cashrecon/internal/domain/reconcile"
	"github.com/fieldbooks/cashrecon/internal/infrastructure/storage"
)

func newReconHandler(repo storage.Repository) *handlers.ReconcileHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewReconService(reconcile.DefaultConfig(), 2, repo, logger)
	return handlers.NewReconcileHandler(svc)
}

const startBody = `{
	"payments": [
		{"id": "PAY_1", "amount_cents": 250000, "fee_cents": 7525, "created_at": "2025-06-15T10:00:00Z"}
	],
	"invoices": [
		{"id": "INV_1", "job_id": "JOB_1", "amount": "2500.00", "paid_date": "2025-06-14"}
	]
}`

func TestReconcileHandler_Start(t *testing.T) {
	t.Run("starts a job and reports completion", func(t *testing.T) {
		repo := storage.NewMockRepository()
		handler := newReconHandler(repo)

		req := httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader(startBody))
		rec := httptest.NewRecorder()

		handler.Start(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)

		var response dto.StartReconcileResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)
		require.NotEmpty(t, response.JobID)

		// Poll status until the background job finishes
		require.Eventually(t, func() bool {
			statusReq := httptest.NewRequest(http.MethodGet, "/api/reconcile/"+response.JobID, nil)
			statusReq = statusReq.WithContext(setChiURLParam(statusReq.Context(), "jobId", response.JobID))
			statusRec := httptest.NewRecorder()
			handler.Status(statusRec, statusReq)

			var job dto.ReconJobResponse
			if err := json.NewDecoder(statusRec.Body).Decode(&job); err != nil {
				return false
			}
			return job.Status == string(service.StatusCompleted)
		}, 5*time.Second, 10*time.Millisecond)

		// Completed job carries a summary
		statusReq := httptest.NewRequest(http.MethodGet, "/api/reconcile/"+response.JobID, nil)
		statusReq = statusReq.WithContext(setChiURLParam(statusReq.Context(), "jobId", response.JobID))
		statusRec := httptest.NewRecorder()
		handler.Status(statusRec, statusReq)

		var job dto.ReconJobResponse
		require.NoError(t, json.NewDecoder(statusRec.Body).Decode(&job))
		require.NotNil(t, job.Summary)
		assert.Equal(t, 1, job.Summary.TotalPayments)
		assert.Equal(t, 1, job.Summary.HighConfidenceMatches)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		handler := newReconHandler(storage.NewMockRepository())

		req := httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader(`{`))
		rec := httptest.NewRecorder()

		handler.Start(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects missing payments", func(t *testing.T) {
		handler := newReconHandler(storage.NewMockRepository())

		req := httptest.NewRequest(http.MethodPost, "/api/reconcile",
			strings.NewReader(`{"invoices": [{"id":"INV_1","amount":"10.00"}]}`))
		rec := httptest.NewRecorder()

		handler.Start(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects invalid payment record", func(t *testing.T) {
		handler := newReconHandler(storage.NewMockRepository())

		body := `{
			"payments": [{"id": "PAY_1", "amount_cents": -5, "created_at": "2025-06-15T10:00:00Z"}],
			"invoices": [{"id": "INV_1", "amount": "10.00"}]
		}`
		req := httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.Start(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var response dto.APIError
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, dto.ErrCodeValidation, response.Code)
	})
}

func TestReconcileHandler_Status_NotFound(t *testing.T) {
	handler := newReconHandler(storage.NewMockRepository())

	req := httptest.NewRequest(http.MethodGet, "/api/reconcile/nope", nil)
	req = req.WithContext(setChiURLParam(req.Context(), "jobId", "nope"))
	rec := httptest.NewRecorder()

	handler.Status(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReconcileHandler_Cancel_Conflict(t *testing.T) {
	handler := newReconHandler(storage.NewMockRepository())

	req := httptest.NewRequest(http.MethodDelete, "/api/reconcile/nope", nil)
	req = req.WithContext(setChiURLParam(req.Context(), "jobId", "nope"))
	rec := httptest.NewRecorder()

	handler.Cancel(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReconcileHandler_ListActive_Empty(t *testing.T) {
	handler := newReconHandler(storage.NewMockRepository())

	req := httptest.NewRequest(http.MethodGet, "/api/reconcile/active", nil)
	rec := httptest.NewRecorder()

	handler.ListActive(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.ActiveJobsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, 0, response.Count)
}
