package models

import "strings"

// Category is the equipment family an id resolves to.
type Category string

const (
	CategoryBoiler     Category = "boiler"
	CategoryChiller    Category = "chiller"
	CategoryPump       Category = "pump"
	CategoryAirHandler Category = "air-handler"
	CategoryFancoil    Category = "fancoil"
	CategoryGeo        Category = "geo"
	CategoryLighting   Category = "lighting"
	CategoryUnknown    Category = "unknown"
)

// categoryMatchers is checked in order; the first matching substring wins.
var categoryMatchers = []struct {
	category Category
	needles  []string
}{
	{CategoryBoiler, []string{"boiler"}},
	{CategoryChiller, []string{"chiller"}},
	{CategoryPump, []string{"pump"}},
	{CategoryAirHandler, []string{"ahu", "air"}},
	{CategoryFancoil, []string{"fancoil", "fan"}},
	{CategoryGeo, []string{"geo"}},
}

// ResolveCategory maps an equipment id to its category by substring match.
func ResolveCategory(equipmentID string) Category {
	id := strings.ToLower(equipmentID)
	if id == "" {
		return CategoryUnknown
	}
	for _, m := range categoryMatchers {
		for _, needle := range m.needles {
			if strings.Contains(id, needle) {
				return m.category
			}
		}
	}
	return CategoryUnknown
}

// ParseCategory accepts category names and the "ahu" alias used in load shedding lists.
func ParseCategory(s string) Category {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryBoiler, CategoryChiller, CategoryPump, CategoryAirHandler,
		CategoryFancoil, CategoryGeo, CategoryLighting:
		return c
	case "ahu", "air_handler", "airhandler":
		return CategoryAirHandler
	default:
		return CategoryUnknown
	}
}

func (c Category) String() string { return string(c) }

// Known reports whether the category has parameters of its own.
func (c Category) Known() bool {
	return c != CategoryUnknown && c != ""
}
