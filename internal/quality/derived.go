package quality

import (
	"math"

	"github.com/ppiankov/steelminer/internal/model"
)

// KeyAlloyElements are summed into the total key-alloy content
var KeyAlloyElements = []string{"C", "Si", "Mn", "Cr", "Mo", "Ni", "V", "Ti", "Nb", "Cu", "B"}

// carbonEquivalentTerms are the IIW carbon equivalent coefficients
var carbonEquivalentTerms = []struct {
	element string
	divisor float64
}{
	{"C", 1}, {"Mn", 6}, {"Cr", 5}, {"Mo", 5}, {"V", 5}, {"Ni", 15}, {"Cu", 15},
}

// DerivedMetrics computes total key-alloy content and carbon equivalent
// (C + Mn/6 + (Cr+Mo+V)/5 + (Ni+Cu)/15) from the first measurement of each
// element. A metric is nil when none of its elements were measured.
func DerivedMetrics(composition model.FieldMeasurements) model.Derived {
	var (
		derived   model.Derived
		total, ce float64
		haveTotal bool
		haveCE    bool
	)

	for _, el := range KeyAlloyElements {
		if m, ok := composition.First(el); ok {
			total += m.Value
			haveTotal = true
		}
	}
	for _, term := range carbonEquivalentTerms {
		if m, ok := composition.First(term.element); ok {
			ce += m.Value / term.divisor
			haveCE = true
		}
	}

	if haveTotal {
		v := round(total, 4)
		derived.TotalKeyAlloy = &v
	}
	if haveCE {
		v := round(ce, 4)
		derived.CarbonEquivalent = &v
	}
	return derived
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
