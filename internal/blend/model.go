package blend

import (
	"fmt"
	"math"
)

// Physical correlation constants. They decide feasibility at the precision
// the constraint checker rounds to, so they must not be altered.
const (
	barrelsPerCubicMeter = 6.29506768
	airBuoyancy          = 0.00121127225
	apiNumerator         = 141.5
	apiOffset            = 131.5
	viscosityShift       = 0.85
	viscosityRecover     = 0.8
	minBlendViscosity    = 1.5
	flashExponent        = -0.06
	rankineOffset        = 460
	densityWaterRatio    = 0.9994
)

// Intermediate derives the per-tank quantities for a tank holding volume v.
func Intermediate(t Tank, v float64) IntermediateTankValues {
	sg := apiNumerator / (t.API + apiOffset)
	mass := v * (sg - airBuoyancy) / barrelsPerCubicMeter

	return IntermediateTankValues{
		Volume:          v,
		SpecificGravity: sg,
		Mass:            mass,
		CostPerMass:     t.Cost * barrelsPerCubicMeter / (sg - airBuoyancy),
		ViscosityIndex:  v * math.Log(math.Log(math.Max(minBlendViscosity, t.Viscosity)+viscosityShift)),
		FlashIndex:      v * math.Exp(math.Log(rankineOffset+t.Flash)/flashExponent),
		VolumeGravity:   v * sg,
		VolumeCost:      v * t.Cost,
		SulfurMass:      mass * t.SulfurPcnt,
		VanadiumMass:    mass * t.V,
		SodiumMass:      mass * t.Na,
		WaterMass:       mass * t.WaterPcnt,
		SiliconMass:     mass * t.Si,
		AluminumMass:    mass * t.AlSi,
		AsphalteneMass:  mass * t.AsphPcnt,
		MCRMass:         mass * t.MCRTPcnt,
	}
}

// Compute blends the tanks at the given allocation. It returns the aggregate
// blend together with the per-tank intermediates, or a *DomainError when the
// allocation has no volume or no mass to weight by, or when any blended
// property is not a finite number.
func Compute(tanks []Tank, alloc Allocation) (AggregateBlend, []IntermediateTankValues, error) {
	if len(alloc) != len(tanks) {
		return AggregateBlend{}, nil, &DomainError{
			Quantity: "allocation",
			Reason:   fmt.Sprintf("has %d volumes for %d tanks", len(alloc), len(tanks)),
		}
	}

	parts := make([]IntermediateTankValues, len(tanks))
	var sum IntermediateTankValues
	for i, t := range tanks {
		p := Intermediate(t, alloc[i])
		parts[i] = p

		sum.Volume += p.Volume
		sum.Mass += p.Mass
		sum.VolumeGravity += p.VolumeGravity
		sum.VolumeCost += p.VolumeCost
		sum.ViscosityIndex += p.ViscosityIndex
		sum.FlashIndex += p.FlashIndex
		sum.SulfurMass += p.SulfurMass
		sum.VanadiumMass += p.VanadiumMass
		sum.SodiumMass += p.SodiumMass
		sum.WaterMass += p.WaterMass
		sum.SiliconMass += p.SiliconMass
		sum.AluminumMass += p.AluminumMass
		sum.AsphalteneMass += p.AsphalteneMass
		sum.MCRMass += p.MCRMass
	}

	if sum.Volume == 0 {
		return AggregateBlend{}, parts, &DomainError{Quantity: "Volume", Reason: "is zero"}
	}
	if sum.Mass == 0 {
		return AggregateBlend{}, parts, &DomainError{Quantity: "totalMt", Reason: "is zero"}
	}

	b := AggregateBlend{
		Volume:    sum.Volume,
		TotalMass: sum.Mass,
	}
	b.SpecificGravity = sum.VolumeGravity / b.Volume
	b.API = apiNumerator/b.SpecificGravity - apiOffset
	b.Viscosity = math.Exp(math.Exp(sum.ViscosityIndex/b.Volume)) - viscosityRecover
	b.Cost = sum.VolumeCost / b.Volume
	b.SulfurPcnt = sum.SulfurMass / b.TotalMass
	b.Flash = math.Exp(flashExponent*math.Log(sum.FlashIndex/b.Volume)) - rankineOffset
	b.WaterPcnt = sum.WaterMass / b.TotalMass
	b.AsphPcnt = sum.AsphalteneMass / b.TotalMass
	b.AlSi = sum.AluminumMass / b.TotalMass
	b.Si = sum.SiliconMass / b.TotalMass
	b.V = sum.VanadiumMass / b.TotalMass
	b.Na = sum.SodiumMass / b.TotalMass
	b.MCRTPcnt = sum.MCRMass / b.TotalMass
	b.Density = roundHalfEven(apiNumerator/(apiOffset+b.API)*densityWaterRatio, 4) * 1000
	b.CCAI = b.Density - 81 - 141*math.Log(math.Log(b.Viscosity+viscosityShift))

	if name, ok := firstNonFinite(b); !ok {
		return AggregateBlend{}, parts, &DomainError{Quantity: name, Reason: "is not finite"}
	}
	return b, parts, nil
}

// UnitCost is the blend cost per unit mass.
func (b AggregateBlend) UnitCost() float64 {
	return b.Volume * b.Cost / b.TotalMass
}

func firstNonFinite(b AggregateBlend) (string, bool) {
	fields := []struct {
		name  string
		value float64
	}{
		{"specificGravity", b.SpecificGravity},
		{"API", b.API},
		{"Viscosity", b.Viscosity},
		{"Cost", b.Cost},
		{"SulfurPcnt", b.SulfurPcnt},
		{"Flash", b.Flash},
		{"WaterPcnt", b.WaterPcnt},
		{"AsphPcnt", b.AsphPcnt},
		{"AlSi", b.AlSi},
		{"Si", b.Si},
		{"V", b.V},
		{"Na", b.Na},
		{"MCRTPcnt", b.MCRTPcnt},
		{"Density", b.Density},
		{"CCAI", b.CCAI},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return f.name, false
		}
	}
	return "", true
}

// roundHalfEven rounds x to the given number of decimal places, resolving
// ties to the even neighbour.
func roundHalfEven(x float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.RoundToEven(x*scale) / scale
}
