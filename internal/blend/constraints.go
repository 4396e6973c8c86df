package blend

import (
	"fmt"
	"math"
)

// Verdict is the outcome of a constraint check. Violated names the first
// failing constraint and is empty when Pass is true.
type Verdict struct {
	Pass     bool
	Violated string
}

func pass() Verdict { return Verdict{Pass: true} }

func fail(name string) Verdict { return Verdict{Violated: name} }

// Round is the rounding applied to blended properties before they are
// compared with the target. Ties go to the even integer.
func Round(x float64) float64 {
	return math.RoundToEven(x)
}

type limit struct {
	name  string
	value float64
	bound float64
	lower bool
}

// Validate checks the blend against the target and every allocated volume
// against its tank's bounds. Comparisons are written so that NaN values fail.
func Validate(b AggregateBlend, target TargetBlend, tanks []Tank, alloc Allocation) Verdict {
	limits := [...]limit{
		{"Na", b.Na, target.Na, false},
		{"V", b.V, target.V, false},
		{"MCRTPcnt", b.MCRTPcnt, target.MCRTPcnt, false},
		{"Si", b.Si, target.Si, false},
		{"AsphPcnt", b.AsphPcnt, target.AsphPcnt, false},
		{"AlSi", b.AlSi, target.AlSi, false},
		{"WaterPcnt", b.WaterPcnt, target.WaterPcnt, false},
		{"minViscosity", b.Viscosity, target.MinViscosity, true},
		{"maxViscosity", b.Viscosity, target.MaxViscosity, false},
		{"Flash", b.Flash, target.Flash, true},
		{"API", b.API, target.API, true},
		{"SulfurPcnt", b.SulfurPcnt, target.SulfurPcnt, false},
		{"CCAI", b.CCAI, target.CCAI, false},
	}
	for _, l := range limits {
		r := Round(l.value)
		if l.lower {
			if !(r >= l.bound) {
				return fail(l.name)
			}
			continue
		}
		if !(r <= l.bound) {
			return fail(l.name)
		}
	}

	if len(alloc) != len(tanks) {
		return fail("allocation")
	}
	for i, t := range tanks {
		v := alloc[i]
		if !(v >= t.MinimumVolume && v <= t.MaximumVolume) {
			return fail(fmt.Sprintf("volume[%d]", i))
		}
	}
	return pass()
}
