package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"bmsengine/internal/logger"
	"bmsengine/internal/metrics"
	"bmsengine/internal/models"
)

const (
	DefaultAPIBaseURL = "https://neuralbms.automatacontrols.com"
	alarmEmailPath    = "/api/send-alarm-email"
	userAgent         = "AutomataControls-AlertEngine/1.0"
	assignedTechs     = "AI Processing Engine"
)

// APIOptions tune the alarm API channel.
type APIOptions struct {
	Timeout  time.Duration
	Attempts int
	Backoff  time.Duration
	Client   *http.Client
	Now      func() time.Time
}

// APIChannel posts alarm emails through the BMS bridge API.
type APIChannel struct {
	endpoint  string
	recipient string
	opts      APIOptions
}

func NewAPIChannel(baseURL, recipient string, opts APIOptions) *APIChannel {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &APIChannel{
		endpoint:  strings.TrimRight(baseURL, "/") + alarmEmailPath,
		recipient: recipient,
		opts:      opts,
	}
}

func (a *APIChannel) Name() string { return "api" }

type alarmPayload struct {
	AlarmType     string       `json:"alarmType"`
	Details       string       `json:"details"`
	LocationID    string       `json:"locationId"`
	LocationName  string       `json:"locationName"`
	EquipmentName string       `json:"equipmentName"`
	AlarmID       string       `json:"alarmId"`
	Severity      string       `json:"severity"`
	Recipients    []string     `json:"recipients"`
	AssignedTechs string       `json:"assignedTechs"`
	AlertContext  alarmContext `json:"alertContext"`
}

type alarmContext struct {
	Source        string   `json:"source"`
	EquipmentType string   `json:"equipment_type"`
	Value         float64  `json:"value"`
	Threshold     float64  `json:"threshold"`
	Timestamp     string   `json:"timestamp"`
	HealthStatus  *string  `json:"health_status"`
	HourlyCost    *float64 `json:"hourly_cost"`
	TotalPowerKW  *float64 `json:"total_power_kw"`
}

type alarmResponse struct {
	MessageID string `json:"messageId"`
	Summary   struct {
		Successful int `json:"successful"`
	} `json:"summary"`
}

func (a *APIChannel) payload(c *models.Candidate) alarmPayload {
	fact := c.Fact()

	location := orDefault(fact.LocationID, "unknown")
	locationName := "Location " + orDefault(fact.LocationID, "Unknown")
	p := alarmPayload{
		AlarmType:     TitleCase(c.Kind),
		Details:       c.Message,
		LocationID:    location,
		LocationName:  locationName,
		EquipmentName: orDefault(fact.EquipmentID, "System Component"),
		AlarmID:       fmt.Sprintf("ai-alert-%d-%s", a.opts.Now().Unix(), uuid.NewString()[:8]),
		Severity:      strings.ToLower(string(c.Severity)),
		Recipients:    []string{a.recipient},
		AssignedTechs: assignedTechs,
		AlertContext: alarmContext{
			Source:        string(fact.Source),
			EquipmentType: orDefault(string(fact.EquipmentType), "unknown"),
			Value:         fact.Value,
			Threshold:     fact.Threshold,
			Timestamp:     fact.Timestamp.Format(time.RFC3339),
			HourlyCost:    fact.HourlyCost,
			TotalPowerKW:  fact.TotalPowerKW,
		},
	}
	if fact.HealthStatus != "" {
		status := fact.HealthStatus
		p.AlertContext.HealthStatus = &status
	}
	return p
}

// Send posts the alarm, retrying with exponential backoff until a 200 or the attempts run out.
func (a *APIChannel) Send(ctx context.Context, c *models.Candidate) Result {
	log := logger.WithComponent("notify_api")
	payload := a.payload(c)
	headers := map[string]string{"User-Agent": userAgent}

	var lastErr error
	backoff := a.opts.Backoff
	attempt := 0

	for attempt = 0; attempt < a.opts.Attempts; attempt++ {
		if attempt > 0 {
			metrics.NotificationRetries.WithLabelValues(a.Name()).Inc()

			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return Result{Attempts: attempt, Err: ctx.Err()}
			}
		}

		status, body, err := postJSON(ctx, a.opts.Client, a.endpoint, a.opts.Timeout, payload, headers)
		if err == nil && status == http.StatusOK {
			var resp alarmResponse
			_ = json.Unmarshal(body, &resp)
			log.Info().
				Str("alarm_id", payload.AlarmID).
				Str("message_id", resp.MessageID).
				Int("recipients", resp.Summary.Successful).
				Msg("Alarm email sent via BMS API")
			return Result{Success: true, Attempts: attempt + 1}
		}
		if err == nil {
			err = statusError(status, body)
		}

		lastErr = err
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Str("alarm_id", payload.AlarmID).
			Msg("BMS API request failed")

		if ctx.Err() != nil {
			return Result{Attempts: attempt + 1, Err: err}
		}
	}

	return Result{Attempts: attempt, Err: fmt.Errorf("failed after %d attempts: %w", attempt, lastErr)}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
