package energy

import "github.com/shopspring/decimal"

// RatePeriod is the utility tariff band for an hour of the day.
type RatePeriod string

const (
	RatePeak     RatePeriod = "peak"
	RateOffPeak  RatePeriod = "off_peak"
	RateStandard RatePeriod = "standard"
)

var (
	peakRate     = decimal.RequireFromString("0.18")
	offPeakRate  = decimal.RequireFromString("0.08")
	standardRate = decimal.RequireFromString("0.12")
)

// RateFor returns the tariff band and $/kWh for an hour. Peak is 10:00 to 19:59 and
// off-peak is 22:00 to 05:59.
func RateFor(hour int) (RatePeriod, decimal.Decimal) {
	switch {
	case hour >= 10 && hour <= 19:
		return RatePeak, peakRate
	case hour >= 22 || hour <= 5:
		return RateOffPeak, offPeakRate
	default:
		return RateStandard, standardRate
	}
}
