package models

import "time"

// AlertFact is the serialized form of a candidate published to brokers and stored as history.
type AlertFact struct {
	ID            string    `json:"id"`
	Kind          string    `json:"alert_type"`
	Severity      Severity  `json:"severity"`
	Source        Source    `json:"source"`
	Subject       string    `json:"subject"`
	EquipmentID   string    `json:"equipment_id,omitempty"`
	LocationID    string    `json:"location_id,omitempty"`
	EquipmentType Category  `json:"equipment_type,omitempty"`
	Message       string    `json:"message"`
	Value         float64   `json:"value"`
	Threshold     float64   `json:"threshold"`
	HealthStatus  string    `json:"health_status,omitempty"`
	HourlyCost    *float64  `json:"hourly_cost,omitempty"`
	TotalPowerKW  *float64  `json:"total_power_kw,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Fact flattens the candidate and its details.
func (c *Candidate) Fact() AlertFact {
	f := AlertFact{
		ID:            c.ID,
		Kind:          c.Kind,
		Severity:      c.Severity,
		Source:        c.Source(),
		Subject:       c.Subject,
		EquipmentID:   c.EquipmentID(),
		LocationID:    c.LocationID(),
		EquipmentType: c.EquipmentType(),
		Message:       c.Message,
		Value:         c.Value,
		Threshold:     c.Threshold,
		Timestamp:     c.Timestamp,
	}
	switch d := c.Details.(type) {
	case HealthDetails:
		f.HealthStatus = d.HealthStatus
	case EnergyDetails:
		f.HourlyCost = d.HourlyCost
		f.TotalPowerKW = d.TotalPowerKW
	}
	return f
}
