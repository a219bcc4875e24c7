package units

import (
	"github.com/rotisserie/eris"
)

// ErrUnsupportedUnit marks a unit that cannot be converted for a quantity type
var ErrUnsupportedUnit = eris.New("units: unsupported unit")

// linear maps v to (v + offset) * scale
type linear struct {
	offset float64
	scale  float64
}

func (l linear) apply(v float64) float64 {
	return (v + l.offset) * l.scale
}

var baseUnits = map[Type]string{
	Temperature:   "°C",
	Time:          "min",
	Stress:        "MPa",
	Energy:        "J",
	EnergyDensity: "J/cm²",
	CoolingRate:   "°C/s",
	Length:        "μm",
}

var converters = map[Type]map[string]linear{
	Temperature: {
		"°C": {0, 1},
		"K":  {-273.15, 1},
		"°F": {-32, 5.0 / 9.0},
	},
	Time: {
		"s":   {0, 1.0 / 60},
		"min": {0, 1},
		"h":   {0, 60},
		"d":   {0, 1440},
	},
	Stress: {
		"MPa":   {0, 1},
		"GPa":   {0, 1000},
		"kPa":   {0, 1e-3},
		"Pa":    {0, 1e-6},
		"N/mm²": {0, 1},
	},
	Energy: {
		"J":  {0, 1},
		"kJ": {0, 1000},
	},
	EnergyDensity: {
		"J/cm²": {0, 1},
		"kJ/m²": {0, 0.1},
		"J/mm²": {0, 100},
	},
	CoolingRate: {
		"°C/s":   {0, 1},
		"K/s":    {0, 1},
		"°C/min": {0, 1.0 / 60},
		"°C/h":   {0, 1.0 / 3600},
	},
	Length: {
		"μm": {0, 1},
		"nm": {0, 1e-3},
		"mm": {0, 1e3},
		"cm": {0, 1e4},
	},
}

// passthrough types keep value and unit unchanged
func passthrough(t Type) bool {
	return t == Percent || t == Fraction || t == Hardness
}

// Resolve looks a unit up by canonical name, then by alias
func Resolve(unit string) (Unit, bool) {
	if u, ok := ByName(unit); ok {
		return u, true
	}
	return Canonicalize(unit)
}

// ConvertToBase converts value from source into the base unit of t.
// An unknown source, or a source of another type, is a hard miss.
func ConvertToBase(value float64, t Type, source string) (float64, string, error) {
	u, ok := Resolve(source)
	if !ok {
		return 0, "", eris.Wrapf(ErrUnsupportedUnit, "unknown unit %q", source)
	}
	if u.Type != t {
		return 0, "", eris.Wrapf(ErrUnsupportedUnit, "unit %q is %s, not %s", source, u.Type, t)
	}
	if passthrough(t) {
		return value, u.Name, nil
	}

	conv, ok := converters[t][u.Name]
	if !ok {
		return 0, "", eris.Wrapf(ErrUnsupportedUnit, "no %s converter for %q", t, u.Name)
	}
	return conv.apply(value), baseUnits[t], nil
}
