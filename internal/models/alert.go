package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity of an alert candidate
type Severity string

const (
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Source names the evaluator family that produced a candidate.
type Source string

const (
	SourceEquipment  Source = "equipment_monitoring"
	SourcePredictive Source = "predictive_maintenance"
	SourceEnergy     Source = "energy_optimization"
)

// Alert kinds
const (
	KindHighTemperature         = "HIGH_TEMPERATURE"
	KindEquipmentHealthCritical = "EQUIPMENT_HEALTH_CRITICAL"
	KindEquipmentHealthLow      = "EQUIPMENT_HEALTH_LOW"
	KindHighEnergyConsumption   = "HIGH_ENERGY_CONSUMPTION"
	KindLowEnergyEfficiency     = "LOW_ENERGY_EFFICIENCY"
)

// Details carries the source-specific part of a candidate.
type Details interface {
	Source() Source
	equipment() string
	location() string
}

// EquipmentDetails accompany threshold alerts on sensor readings.
type EquipmentDetails struct {
	EquipmentID string
	LocationID  string
	Category    Category
}

func (EquipmentDetails) Source() Source      { return SourceEquipment }
func (d EquipmentDetails) equipment() string { return d.EquipmentID }
func (d EquipmentDetails) location() string  { return d.LocationID }

// HealthDetails accompany predictive maintenance alerts.
type HealthDetails struct {
	EquipmentID  string
	LocationID   string
	Category     Category
	HealthStatus string
}

func (HealthDetails) Source() Source      { return SourcePredictive }
func (d HealthDetails) equipment() string { return d.EquipmentID }
func (d HealthDetails) location() string  { return d.LocationID }

// EnergyDetails accompany location-level energy alerts. Nil pointers are unreported values.
type EnergyDetails struct {
	LocationID   string
	HourlyCost   *float64
	TotalPowerKW *float64
}

func (EnergyDetails) Source() Source      { return SourceEnergy }
func (d EnergyDetails) equipment() string { return "" }
func (d EnergyDetails) location() string  { return d.LocationID }

// Candidate is a proposed notification. It is built once and never modified.
type Candidate struct {
	ID        string
	Severity  Severity
	Kind      string
	Subject   string
	Message   string
	Value     float64
	Threshold float64
	Timestamp time.Time
	Details   Details
}

// NewCandidate builds a candidate whose subject is the equipment id, or the location id when
// the details carry no equipment.
func NewCandidate(sev Severity, kind, message string, value, threshold float64, details Details, at time.Time) *Candidate {
	subject := details.equipment()
	if subject == "" {
		subject = details.location()
	}
	if subject == "" {
		subject = "unknown"
	}
	return &Candidate{
		ID:        uuid.NewString(),
		Severity:  sev,
		Kind:      kind,
		Subject:   subject,
		Message:   message,
		Value:     value,
		Threshold: threshold,
		Timestamp: at,
		Details:   details,
	}
}

func (c *Candidate) Source() Source { return c.Details.Source() }

// CooldownKey identifies repeats of the same alert for the same subject.
func (c *Candidate) CooldownKey() string {
	return c.Subject + "_" + c.Kind
}

func (c *Candidate) EquipmentID() string { return c.Details.equipment() }
func (c *Candidate) LocationID() string  { return c.Details.location() }

// EquipmentType is empty for candidates that are not about a single piece of equipment.
func (c *Candidate) EquipmentType() Category {
	switch d := c.Details.(type) {
	case EquipmentDetails:
		return d.Category
	case HealthDetails:
		return d.Category
	}
	return ""
}

// Float returns a pointer for optional numeric details.
func Float(v float64) *float64 { return &v }
