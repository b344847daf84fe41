package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"bmsengine/internal/energy"
	"bmsengine/internal/health"
	"bmsengine/internal/logger"
	"bmsengine/internal/models"
)

// AlertReader lists recorded alert facts, newest first.
type AlertReader interface {
	Recent(ctx context.Context, subject string, limit int) ([]models.AlertFact, error)
}

// QueryHandler serves the read side: alert history and the latest analytics per
// equipment and location.
type QueryHandler struct {
	alerts    AlertReader
	analyzer  *health.Analyzer
	optimizer *energy.Optimizer
}

// NewQueryHandler accepts nil for any source; its routes then answer 404.
func NewQueryHandler(alerts AlertReader, analyzer *health.Analyzer, optimizer *energy.Optimizer) *QueryHandler {
	return &QueryHandler{alerts: alerts, analyzer: analyzer, optimizer: optimizer}
}

func (q *QueryHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /alerts", q.listAlerts)
	mux.HandleFunc("GET /equipment/{id}/health", q.equipmentHealth)
	mux.HandleFunc("GET /locations/{id}/energy", q.locationEnergy)
}

type AlertsResponse struct {
	Alerts []models.AlertFact `json:"alerts"`
	Count  int                `json:"count"`
}

func (q *QueryHandler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if q.alerts == nil {
		writeJSONError(w, http.StatusNotFound, "alert history is not configured")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	facts, err := q.alerts.Recent(r.Context(), r.URL.Query().Get("subject"), limit)
	if err != nil {
		log := logger.WithComponent("query")
		log.Error().Err(err).Msg("failed to read alert history")
		writeJSONError(w, http.StatusInternalServerError, "failed to read alert history")
		return
	}
	if facts == nil {
		facts = []models.AlertFact{}
	}
	writeJSON(w, http.StatusOK, AlertsResponse{Alerts: facts, Count: len(facts)})
}

// HealthView is the latest assessment of one piece of equipment.
type HealthView struct {
	EquipmentID        string    `json:"equipment_id"`
	LocationID         string    `json:"location_id"`
	EquipmentType      string    `json:"equipment_type"`
	HealthScore        float64   `json:"health_score"`
	HealthStatus       string    `json:"health_status"`
	TemperatureScore   float64   `json:"temperature_score"`
	EfficiencyScore    float64   `json:"efficiency_score"`
	TrendScore         float64   `json:"trend_score"`
	OperationalScore   float64   `json:"operational_score"`
	FailureProbability int       `json:"failure_probability"`
	DaysToFailure      int       `json:"days_to_failure"`
	Priority           string    `json:"maintenance_priority"`
	FailureModes       []string  `json:"failure_modes"`
	Recommendation     string    `json:"recommendation"`
	MaintenanceType    string    `json:"maintenance_type"`
	NextMaintenance    time.Time `json:"next_maintenance"`
	DurationHours      float64   `json:"duration_hours"`
	Tasks              []string  `json:"tasks"`
	EstimatedCost      string    `json:"estimated_cost"`
	ComputedAt         time.Time `json:"computed_at"`
}

func NewHealthView(a health.Assessment) HealthView {
	modes := a.Prediction.FailureModes
	if modes == nil {
		modes = []string{}
	}
	return HealthView{
		EquipmentID:        a.Record.EquipmentID,
		LocationID:         a.Record.LocationID,
		EquipmentType:      string(a.Record.Category),
		HealthScore:        a.Record.Score,
		HealthStatus:       string(a.Record.Status),
		TemperatureScore:   a.Record.Temperature,
		EfficiencyScore:    a.Record.Efficiency,
		TrendScore:         a.Record.Trend,
		OperationalScore:   a.Record.Operational,
		FailureProbability: a.Prediction.FailureProbability,
		DaysToFailure:      a.Prediction.DaysToFailure,
		Priority:           string(a.Prediction.Priority),
		FailureModes:       modes,
		Recommendation:     a.Prediction.Recommendation,
		MaintenanceType:    string(a.Plan.Type),
		NextMaintenance:    a.Plan.NextDate,
		DurationHours:      a.Plan.DurationHours,
		Tasks:              a.Plan.Tasks,
		EstimatedCost:      a.Plan.EstimatedCost.StringFixed(2),
		ComputedAt:         a.Record.ComputedAt,
	}
}

func (q *QueryHandler) equipmentHealth(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if q.analyzer == nil {
		writeJSONError(w, http.StatusNotFound, "health analytics are not enabled")
		return
	}
	a, ok := q.analyzer.Latest(id)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "no assessment for equipment "+id)
		return
	}
	writeJSON(w, http.StatusOK, NewHealthView(a))
}

// EnergyView is the latest optimizer result for one location.
type EnergyView struct {
	LocationID        string        `json:"location_id"`
	TotalPowerKW      float64       `json:"total_power_kw"`
	HourlyCost        string        `json:"hourly_cost"`
	AverageEfficiency float64       `json:"average_efficiency"`
	EquipmentCount    int           `json:"equipment_count"`
	RatePeriod        string        `json:"rate_period"`
	PeakPeriod        bool          `json:"peak_period"`
	PeakDemandRisk    string        `json:"peak_demand_risk"`
	CarbonKgPerHour   string        `json:"carbon_footprint_kg"`
	Opportunities     int           `json:"opportunities"`
	Commands          []CommandView `json:"commands"`
	AnalyzedAt        time.Time     `json:"analyzed_at"`
}

type CommandView struct {
	EquipmentID     string  `json:"equipment_id"`
	Type            string  `json:"command_type"`
	Action          string  `json:"action"`
	Priority        string  `json:"priority"`
	TargetValue     float64 `json:"target_value"`
	DurationMinutes int     `json:"duration_minutes"`
}

func NewEnergyView(res energy.Result) EnergyView {
	a := res.Analysis
	cmds := make([]CommandView, 0, len(res.Commands))
	for _, c := range res.Commands {
		cmds = append(cmds, CommandView{
			EquipmentID:     c.EquipmentID,
			Type:            string(c.Type),
			Action:          c.Action,
			Priority:        c.Priority,
			TargetValue:     c.TargetValue,
			DurationMinutes: c.DurationMinutes,
		})
	}
	return EnergyView{
		LocationID:        a.LocationID,
		TotalPowerKW:      a.TotalPowerKW,
		HourlyCost:        a.HourlyCost.StringFixed(2),
		AverageEfficiency: a.AverageEfficiency,
		EquipmentCount:    a.EquipmentCount,
		RatePeriod:        string(a.RatePeriod),
		PeakPeriod:        a.PeakPeriod,
		PeakDemandRisk:    a.PeakDemandRisk,
		CarbonKgPerHour:   a.CarbonKgPerHour.StringFixed(2),
		Opportunities:     res.Opportunities.Total(),
		Commands:          cmds,
		AnalyzedAt:        a.AnalyzedAt,
	}
}

func (q *QueryHandler) locationEnergy(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if q.optimizer == nil {
		writeJSONError(w, http.StatusNotFound, "energy optimization is not enabled")
		return
	}
	res, ok := q.optimizer.Latest(id)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "no energy analysis for location "+id)
		return
	}
	writeJSON(w, http.StatusOK, NewEnergyView(res))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
