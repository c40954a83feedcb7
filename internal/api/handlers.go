package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/uacr-monitor/internal/domain"
	"github.com/uacr-monitor/internal/ingest"
	"github.com/uacr-monitor/internal/middleware"
	"github.com/uacr-monitor/internal/service"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	maxPatientBytes = 1 << 20
	maxBatchBytes   = 32 << 20
)

// Evaluation outcomes reported by POST /evaluate.
const (
	StatusAlert   = "ALERT"
	StatusStable  = "STABLE"
	StatusSkipped = "SKIPPED"
)

// EvaluateResponse is the result of evaluating a single patient.
type EvaluateResponse struct {
	PatientID string                `json:"patient_id"`
	Status    string                `json:"status"`
	Reason    string                `json:"reason,omitempty"`
	Alert     *domain.ClinicalAlert `json:"alert,omitempty"`
	Cached    bool                  `json:"cached"`
	Stored    bool                  `json:"stored"`
}

// BatchResponse wraps a batch result with its persistence outcome.
type BatchResponse struct {
	*service.BatchResult
	Stored   bool `json:"stored"`
	Recorded bool `json:"recorded"`
}

// AlertPage is a page of stored alerts.
type AlertPage struct {
	Alerts []*domain.ClinicalAlert `json:"alerts"`
	Total  int64                   `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

func (s *Server) handleEvaluate(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPatientBytes))
	if err != nil {
		s.abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Failed to read request body", err)
		return
	}

	patient, err := ingest.DecodePatient(raw)
	if err != nil {
		var evalErr *domain.EvaluationError
		if !errors.As(err, &evalErr) {
			s.abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Malformed patient record", err)
			return
		}
		s.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	alert, cached, err := s.deps.Evaluator.Evaluate(ctx, &patient)
	resp := EvaluateResponse{PatientID: patient.ID, Cached: cached}
	switch {
	case err != nil && domain.IsSkippable(err):
		resp.Status = StatusSkipped
		resp.Reason = err.Error()
		c.JSON(http.StatusOK, resp)
		return
	case err != nil:
		s.respondError(c, err)
		return
	case alert == nil:
		resp.Status = StatusStable
		c.JSON(http.StatusOK, resp)
		return
	}

	resp.Status = StatusAlert
	resp.Alert = alert
	if err := s.deps.Alerts.Save(ctx, alert); err != nil {
		s.requestLogger(c).WithError(err).WithField("alert_id", alert.ID).Error("Failed to store alert")
	} else {
		resp.Stored = true
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleBatch(c *gin.Context) {
	serverCfg := s.configManager.GetServerConfig()
	limit := serverCfg.MaxBodyBytes
	if limit <= 0 {
		limit = maxBatchBytes
	}

	decoded, err := ingest.Decode(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.abortWithError(c, http.StatusRequestEntityTooLarge, domain.ErrCodeInvalidInput, "Request body too large",
				fmt.Errorf("body exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Malformed patient document", err)
		return
	}

	maxBatch := serverCfg.MaxBatchSize
	if n := len(decoded.Patients) + len(decoded.Failures); maxBatch > 0 && n > maxBatch {
		s.abortWithError(c, http.StatusRequestEntityTooLarge, domain.ErrCodeInvalidInput, "Batch too large",
			fmt.Errorf("%d patients exceeds the limit of %d", n, maxBatch))
		return
	}

	ctx := c.Request.Context()
	result, err := s.deps.Evaluator.Monitor().ProcessBatch(ctx, decoded.Patients)
	if err != nil {
		s.abortWithError(c, http.StatusGatewayTimeout, domain.ErrCodeUnavailable, "Batch evaluation did not complete", err)
		return
	}
	result.MergeFailures(decoded.Failures)

	resp := BatchResponse{BatchResult: result}
	log := s.requestLogger(c).WithField("run_id", result.RunID.String())

	if err := s.deps.Alerts.SaveAll(ctx, result.Alerts); err != nil {
		log.WithError(err).Error("Failed to store batch alerts")
	} else {
		resp.Stored = true
	}
	if s.deps.Runs != nil {
		if err := s.deps.Runs.Record(ctx, result); err != nil {
			log.WithError(err).Error("Failed to record batch run")
		} else {
			resp.Recorded = true
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetAlert(c *gin.Context) {
	alert, err := s.deps.Alerts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (s *Server) handlePatientAlerts(c *gin.Context) {
	alerts, err := s.deps.Alerts.ListByPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patient_id": c.Param("id"), "alerts": alerts})
}

func (s *Server) handleListAlerts(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	alerts, err := s.deps.Alerts.List(ctx, limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	total, err := s.deps.Alerts.Count(ctx)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, AlertPage{Alerts: alerts, Total: total, Limit: limit, Offset: offset})
}

// handleExport buffers the document so a store failure still yields a
// well-formed error response.
func (s *Server) handleExport(c *gin.Context) {
	var buf bytes.Buffer
	if err := s.deps.Alerts.ExportJSON(c.Request.Context(), &buf); err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="uacr_alerts.json"`)
	c.Data(http.StatusOK, "application/json; charset=utf-8", buf.Bytes())
}

func (s *Server) handleRecentRuns(c *gin.Context) {
	if s.deps.Runs == nil {
		s.abortWithError(c, http.StatusNotFound, domain.ErrCodeNotFound, "Batch run history is not enabled", nil)
		return
	}
	limit, _, err := pagination(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	runs, err := s.deps.Runs.Recent(c.Request.Context(), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s.deps.Runs == nil {
		s.abortWithError(c, http.StatusNotFound, domain.ErrCodeNotFound, "Batch run history is not enabled", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.respondError(c, domain.NewValidationError("id", "run id must be a UUID", c.Param("id")))
		return
	}
	run, err := s.deps.Runs.GetByID(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func pagination(c *gin.Context) (limit, offset int, err error) {
	limit, offset = defaultPageSize, 0
	if v := c.Query("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > maxPageSize {
			return 0, 0, domain.NewValidationError("limit", fmt.Sprintf("limit must be between 1 and %d", maxPageSize), v)
		}
	}
	if v := c.Query("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, domain.NewValidationError("offset", "offset must be a non-negative integer", v)
		}
	}
	return limit, offset, nil
}

// respondError maps domain errors onto API error responses.
func (s *Server) respondError(c *gin.Context, err error) {
	var (
		dateErr  *domain.DateParseError
		validErr *domain.ValidationError
		evalErr  *domain.EvaluationError
	)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.abortWithError(c, http.StatusNotFound, domain.ErrCodeNotFound, "Resource not found", err)
	case errors.Is(err, domain.ErrStoreUnavailable):
		s.abortWithError(c, http.StatusServiceUnavailable, domain.ErrCodeUnavailable, "Alert store temporarily unavailable", err)
	case errors.Is(err, context.DeadlineExceeded):
		s.abortWithError(c, http.StatusGatewayTimeout, domain.ErrCodeUnavailable, "Request timed out", err)
	case errors.As(err, &dateErr):
		s.abortWithError(c, http.StatusBadRequest, domain.ErrCodeDateParse, "Malformed date", err)
	case errors.As(err, &validErr):
		s.abortWithError(c, http.StatusBadRequest, domain.ErrCodeValidation, "Validation failed", err)
	case errors.As(err, &evalErr):
		s.abortWithError(c, http.StatusUnprocessableEntity, domain.ErrCodeValidation, "Patient could not be evaluated", err)
	default:
		s.abortWithError(c, http.StatusInternalServerError, domain.ErrCodeInternalServer, "Internal server error", err)
	}
}

func (s *Server) abortWithError(c *gin.Context, status int, code, message string, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	if status >= http.StatusInternalServerError {
		s.requestLogger(c).WithError(err).Error(message)
		if status == http.StatusInternalServerError {
			details = ""
		}
	}
	c.AbortWithStatusJSON(status, domain.NewAPIError(code, message, details, c.GetString(middleware.CorrelationIDKey)))
}

func (s *Server) requestLogger(c *gin.Context) *logrus.Entry {
	return s.logger.WithField("correlation_id", c.GetString(middleware.CorrelationIDKey))
}
