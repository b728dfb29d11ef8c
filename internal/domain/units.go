package domain

import "strings"

// Temperature units recognised by ConvertTemperature.
const (
	UnitKelvin     = "K"
	UnitCelsius    = "degC"
	UnitFahrenheit = "degF"
)

const absoluteZeroCelsius = 273.15

// KelvinToCelsius converts an absolute temperature.
func KelvinToCelsius(k float64) float64 { return k - absoluteZeroCelsius }

// CelsiusToKelvin converts an absolute temperature.
func CelsiusToKelvin(c float64) float64 { return c + absoluteZeroCelsius }

// ConvertTemperature converts an absolute temperature between K, degC and degF.
// Unit names are matched loosely ("C", "°C", "celsius" all mean degC).
func ConvertTemperature(v float64, from, to string) (float64, error) {
	f, err := canonicalUnit(from)
	if err != nil {
		return 0, err
	}
	t, err := canonicalUnit(to)
	if err != nil {
		return 0, err
	}
	if f == t {
		return v, nil
	}

	var k float64
	switch f {
	case UnitKelvin:
		k = v
	case UnitCelsius:
		k = CelsiusToKelvin(v)
	case UnitFahrenheit:
		k = CelsiusToKelvin((v - 32) * 5 / 9)
	}

	switch t {
	case UnitCelsius:
		return KelvinToCelsius(k), nil
	case UnitFahrenheit:
		return KelvinToCelsius(k)*9/5 + 32, nil
	default:
		return k, nil
	}
}

// ConvertTemperatureDelta converts a difference or rate (anomaly, slope). Only
// the scale changes; there is no offset.
func ConvertTemperatureDelta(d float64, from, to string) (float64, error) {
	f, err := canonicalUnit(from)
	if err != nil {
		return 0, err
	}
	t, err := canonicalUnit(to)
	if err != nil {
		return 0, err
	}
	fToF := func(u string) float64 {
		if u == UnitFahrenheit {
			return 9.0 / 5.0
		}
		return 1
	}
	return d / fToF(f) * fToF(t), nil
}

func canonicalUnit(u string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(u)) {
	case "k", "kelvin":
		return UnitKelvin, nil
	case "c", "°c", "degc", "celsius":
		return UnitCelsius, nil
	case "f", "°f", "degf", "fahrenheit":
		return UnitFahrenheit, nil
	default:
		return "", NewValidationError("units", "unsupported temperature unit %q", u)
	}
}

// SlopeUnits labels a trend slope, e.g. "K" -> "K per year".
func SlopeUnits(units string) string {
	if units == "" {
		return "per year"
	}
	return units + " per year"
}
