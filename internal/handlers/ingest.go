package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"bmsengine/internal/logger"
	"bmsengine/internal/metrics"
	"bmsengine/internal/models"
)

// Submitter queues envelopes without blocking.
type Submitter interface {
	TrySubmit(env *models.WriteEnvelope) error
}

// IngestHandler accepts write envelopes over HTTP and queues them for the triggers
type IngestHandler struct {
	submitter Submitter

	// Node identifier for tracking
	nodeID string

	// Batch counter for generating batch IDs
	batchCounter uint64

	// Max body size (default 10MB)
	maxBodySize int64

	// Queue errors that mean "try again later" rather than "bad request"
	isFull func(error) bool
}

// IngestConfig holds configuration for the ingest handler
type IngestConfig struct {
	Submitter   Submitter
	NodeID      string
	MaxBodySize int64

	// QueueFull is the error the submitter returns when it has no room.
	QueueFull error
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(cfg IngestConfig) *IngestHandler {
	nodeID := cfg.NodeID
	if nodeID == "" {
		nodeID, _ = os.Hostname()
		if nodeID == "" {
			nodeID = "unknown"
		}
	}

	maxBodySize := cfg.MaxBodySize
	if maxBodySize == 0 {
		maxBodySize = 10 * 1024 * 1024 // 10MB default
	}

	isFull := func(error) bool { return false }
	if cfg.QueueFull != nil {
		full := cfg.QueueFull
		isFull = func(err error) bool { return errors.Is(err, full) }
	}

	return &IngestHandler{
		submitter:   cfg.Submitter,
		nodeID:      nodeID,
		maxBodySize: maxBodySize,
		isFull:      isFull,
	}
}

// IngestRequest wraps one or many envelopes
type IngestRequest struct {
	Envelope  *EnvelopeInput  `json:"envelope,omitempty"`
	Envelopes []EnvelopeInput `json:"envelopes,omitempty"`
}

// EnvelopeInput is the wire shape of an envelope (with string timestamp)
type EnvelopeInput struct {
	ID         string              `json:"id"`
	Source     string              `json:"source"`
	ReceivedAt string              `json:"received_at"` // String for flexible parsing
	Tables     []models.TableBatch `json:"tables"`
	Args       any                 `json:"args,omitempty"`
}

// IngestResponse is the response returned to clients
type IngestResponse struct {
	Success  bool          `json:"success"`
	BatchID  string        `json:"batch_id"`
	Accepted int           `json:"accepted"`
	Rejected int           `json:"rejected"`
	Rows     int           `json:"rows"`
	Errors   []IngestError `json:"errors,omitempty"`
}

// IngestError describes why one envelope was rejected
type IngestError struct {
	Index      int    `json:"index"`
	EnvelopeID string `json:"envelope_id,omitempty"`
	Error      string `json:"error"`
}

// ServeHTTP handles the ingest HTTP request
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType != "application/json" && contentType != "" {
		h.writeError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	inputs, err := h.parseBody(body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(inputs) == 0 {
		h.writeError(w, http.StatusBadRequest, "no envelopes provided")
		return
	}

	response, full := h.processEnvelopes(inputs, h.generateBatchID())

	w.Header().Set("Content-Type", "application/json")
	switch {
	case response.Accepted == 0 && full == response.Rejected:
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusServiceUnavailable)
	case response.Accepted == 0:
		w.WriteHeader(http.StatusBadRequest)
	default:
		w.WriteHeader(http.StatusAccepted)
	}
	json.NewEncoder(w).Encode(response)
}

// parseBody accepts a wrapper object, an array of envelopes or a single envelope
func (h *IngestHandler) parseBody(body []byte) ([]EnvelopeInput, error) {
	var req IngestRequest
	if err := json.Unmarshal(body, &req); err == nil {
		if len(req.Envelopes) > 0 {
			return req.Envelopes, nil
		}
		if req.Envelope != nil {
			return []EnvelopeInput{*req.Envelope}, nil
		}
	}

	var inputs []EnvelopeInput
	if err := json.Unmarshal(body, &inputs); err == nil && len(inputs) > 0 {
		return inputs, nil
	}

	var single EnvelopeInput
	if err := json.Unmarshal(body, &single); err == nil && len(single.Tables) > 0 {
		return []EnvelopeInput{single}, nil
	}

	return nil, fmt.Errorf("invalid JSON format: expected envelope object or array of envelopes")
}

// processEnvelopes validates, normalizes and queues envelopes. It also returns how many
// were rejected only because the queue was full.
func (h *IngestHandler) processEnvelopes(inputs []EnvelopeInput, batchID string) (IngestResponse, int) {
	log := logger.WithComponent("ingest")
	response := IngestResponse{
		Success: true,
		BatchID: batchID,
		Errors:  make([]IngestError, 0),
	}
	full := 0

	reject := func(i int, id, source string, err error) {
		response.Errors = append(response.Errors, IngestError{Index: i, EnvelopeID: id, Error: err.Error()})
		response.Rejected++
		metrics.IngestEnvelopesTotal.WithLabelValues(source, "rejected").Inc()
	}

	for i, input := range inputs {
		env, err := h.convertInput(input)
		if err != nil {
			reject(i, input.ID, "http", err)
			continue
		}

		env.Normalize()
		if env.Source == "" {
			env.Source = "http"
		}

		if err := env.Validate(); err != nil {
			reject(i, env.ID, env.Source, err)
			continue
		}

		if err := h.submitter.TrySubmit(env); err != nil {
			if h.isFull(err) {
				full++
				err = errors.New("internal queue full, try again later")
			}
			reject(i, env.ID, env.Source, err)
			continue
		}

		response.Accepted++
		response.Rows += env.RowCount()
		metrics.IngestEnvelopesTotal.WithLabelValues(env.Source, "accepted").Inc()
		metrics.IngestRowsPerEnvelope.Observe(float64(env.RowCount()))
	}

	response.Success = response.Rejected == 0
	log.Debug().
		Str("batch_id", batchID).
		Int("accepted", response.Accepted).
		Int("rejected", response.Rejected).
		Msg("ingest batch handled")
	return response, full
}

// convertInput converts EnvelopeInput to a WriteEnvelope
func (h *IngestHandler) convertInput(input EnvelopeInput) (*models.WriteEnvelope, error) {
	env := &models.WriteEnvelope{
		ID:     input.ID,
		Source: input.Source,
		Tables: input.Tables,
		Args:   input.Args,
	}
	if input.ReceivedAt != "" {
		ts, err := models.ParseTimestamp(input.ReceivedAt)
		if err != nil {
			return nil, fmt.Errorf("received_at: %w", err)
		}
		env.ReceivedAt = ts
	}
	return env, nil
}

// generateBatchID generates a unique batch ID
func (h *IngestHandler) generateBatchID() string {
	counter := atomic.AddUint64(&h.batchCounter, 1)
	return fmt.Sprintf("%s-%d-%d", h.nodeID, time.Now().UnixNano(), counter)
}

// writeError writes an error response
func (h *IngestHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
