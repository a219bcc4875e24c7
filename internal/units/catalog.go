package units

import (
	"sort"
	"strings"
)

// Type is a physical quantity kind used to select a converter
type Type string

const (
	Temperature   Type = "temperature"
	Time          Type = "time"
	Stress        Type = "stress"
	Fraction      Type = "fraction"
	Percent       Type = "percent"
	Energy        Type = "energy"
	EnergyDensity Type = "energy_density"
	CoolingRate   Type = "cooling_rate"
	Length        Type = "length"
	Hardness      Type = "hardness"
	Categorical   Type = "categorical"
)

// Unit is one catalog record. Aliases are stored in normalized form.
type Unit struct {
	Name    string
	Type    Type
	Aliases []string
}

var catalog = []Unit{
	{Name: "°C", Type: Temperature, Aliases: []string{"°c", "oc", "degc", "deg.c", "degreec", "degreesc", "celsius", "degreecelsius", "degreescelsius", "摄氏度"}},
	{Name: "K", Type: Temperature, Aliases: []string{"k", "kelvin"}},
	{Name: "°F", Type: Temperature, Aliases: []string{"°f", "degf", "fahrenheit"}},

	{Name: "s", Type: Time, Aliases: []string{"s", "sec", "secs", "second", "seconds", "秒"}},
	{Name: "min", Type: Time, Aliases: []string{"min", "mins", "minute", "minutes", "分钟"}},
	{Name: "h", Type: Time, Aliases: []string{"h", "hr", "hrs", "hour", "hours", "小时"}},
	{Name: "d", Type: Time, Aliases: []string{"d", "day", "days", "天"}},

	{Name: "MPa", Type: Stress, Aliases: []string{"mpa", "兆帕"}},
	{Name: "GPa", Type: Stress, Aliases: []string{"gpa"}},
	{Name: "kPa", Type: Stress, Aliases: []string{"kpa"}},
	{Name: "Pa", Type: Stress, Aliases: []string{"pa"}},
	{Name: "N/mm²", Type: Stress, Aliases: []string{"n/mm2", "n/mm²", "nmm-2"}},

	{Name: "%", Type: Percent, Aliases: []string{"%", "pct", "percent"}},
	{Name: "wt.%", Type: Percent, Aliases: []string{"wt.%", "wt%", "wt", "wt.pct", "wtpct", "mass%", "mass.%", "质量分数"}},
	{Name: "at.%", Type: Percent, Aliases: []string{"at.%", "at%", "at.pct"}},
	{Name: "vol.%", Type: Percent, Aliases: []string{"vol.%", "vol%", "vol.pct", "体积分数"}},
	{Name: "fraction", Type: Fraction, Aliases: []string{"fraction", "frac"}},

	{Name: "J", Type: Energy, Aliases: []string{"j", "joule", "joules", "焦耳"}},
	{Name: "kJ", Type: Energy, Aliases: []string{"kj"}},

	{Name: "J/cm²", Type: EnergyDensity, Aliases: []string{"j/cm2", "j/cm²", "jcm-2"}},
	{Name: "kJ/m²", Type: EnergyDensity, Aliases: []string{"kj/m2", "kj/m²", "kjm-2"}},
	{Name: "J/mm²", Type: EnergyDensity, Aliases: []string{"j/mm2", "j/mm²"}},

	{Name: "°C/s", Type: CoolingRate, Aliases: []string{"°c/s", "°cs-1", "oc/s", "°c/sec", "degc/s"}},
	{Name: "K/s", Type: CoolingRate, Aliases: []string{"k/s", "ks-1", "k/sec"}},
	{Name: "°C/min", Type: CoolingRate, Aliases: []string{"°c/min", "oc/min", "°cmin-1", "k/min"}},
	{Name: "°C/h", Type: CoolingRate, Aliases: []string{"°c/h", "oc/h", "°ch-1", "k/h"}},

	{Name: "μm", Type: Length, Aliases: []string{"μm", "um", "micron", "microns", "micrometer", "micrometers", "micrometre", "micrometres", "微米"}},
	{Name: "nm", Type: Length, Aliases: []string{"nm", "nanometer", "nanometers", "纳米"}},
	{Name: "mm", Type: Length, Aliases: []string{"mm", "millimeter", "millimeters", "毫米"}},
	{Name: "cm", Type: Length, Aliases: []string{"cm", "centimeter", "centimeters"}},

	{Name: "HV", Type: Hardness, Aliases: []string{"hv", "hv0.1", "hv0.2", "hv0.3", "hv0.5", "hv1", "hv5", "hv10", "hv20", "hv30", "vickers"}},
	{Name: "HRC", Type: Hardness, Aliases: []string{"hrc"}},
	{Name: "HRB", Type: Hardness, Aliases: []string{"hrb"}},
	{Name: "HB", Type: Hardness, Aliases: []string{"hb", "hbw", "hbs", "brinell"}},
}

type aliasEntry struct {
	alias string
	unit  *Unit
}

var (
	byAlias map[string]*Unit
	byName  map[string]*Unit
	// longest alias first for prefix matching
	sortedAliases []aliasEntry
)

func init() {
	byAlias = make(map[string]*Unit)
	byName = make(map[string]*Unit)
	for i := range catalog {
		u := &catalog[i]
		byName[u.Name] = u
		for _, a := range u.Aliases {
			byAlias[a] = u
			sortedAliases = append(sortedAliases, aliasEntry{alias: a, unit: u})
		}
	}
	sort.SliceStable(sortedAliases, func(i, j int) bool {
		return len(sortedAliases[i].alias) > len(sortedAliases[j].alias)
	})
}

// ByName returns the record for a canonical unit name
func ByName(name string) (Unit, bool) {
	u, ok := byName[name]
	if !ok {
		return Unit{}, false
	}
	return *u, true
}

// OfType returns canonical names of every unit of a type
func OfType(t Type) []string {
	var names []string
	for _, u := range catalog {
		if u.Type == t {
			names = append(names, u.Name)
		}
	}
	return names
}

// Canonicalize resolves raw unit text to a catalog unit.
// Exact alias lookup first, then the longest alias that prefixes the text.
func Canonicalize(raw string) (Unit, bool) {
	key := Normalize(raw)
	if key == "" {
		return Unit{}, false
	}
	if u, ok := byAlias[key]; ok {
		return *u, true
	}
	if u, ok := byName[strings.TrimSpace(raw)]; ok {
		return *u, true
	}
	for _, e := range sortedAliases {
		if !strings.HasPrefix(key, e.alias) {
			continue
		}
		// "ksi" must not resolve to kelvin
		if isShortWord(e.alias) && len(key) > len(e.alias) && isASCIIAlnum(rune(key[len(e.alias)])) {
			continue
		}
		return *e.unit, true
	}
	return Unit{}, false
}

func isShortWord(alias string) bool {
	if len(alias) > 2 {
		return false
	}
	for _, r := range alias {
		if !isASCIIAlnum(r) {
			return false
		}
	}
	return true
}
