// Package blend models fuel-oil blending: per-tank intermediate quantities,
// the aggregate blend they produce, the quality constraints a blend must meet
// and the penalized cost that the optimizers minimize.
package blend

// Tank is one feedstock tank. Quality fields use the same units as the
// planner's input documents. Tanks are never mutated during a run.
type Tank struct {
	Name          string  `json:"name,omitempty" yaml:"name,omitempty"`
	API           float64 `json:"API" yaml:"API"`
	Cost          float64 `json:"Cost" yaml:"Cost"`
	Viscosity     float64 `json:"Viscosity" yaml:"Viscosity"`
	SulfurPcnt    float64 `json:"SulfurPcnt" yaml:"SulfurPcnt"`
	V             float64 `json:"V" yaml:"V"`
	Na            float64 `json:"Na" yaml:"Na"`
	WaterPcnt     float64 `json:"WaterPcnt" yaml:"WaterPcnt"`
	Si            float64 `json:"Si" yaml:"Si"`
	AlSi          float64 `json:"AlSi" yaml:"AlSi"`
	AsphPcnt      float64 `json:"AsphPcnt" yaml:"AsphPcnt"`
	MCRTPcnt      float64 `json:"MCRTPcnt" yaml:"MCRTPcnt"`
	Flash         float64 `json:"Flash" yaml:"Flash"`
	MinimumVolume float64 `json:"minimumVolume" yaml:"minimumVolume"`
	MaximumVolume float64 `json:"maximumVolume" yaml:"maximumVolume"`
}

// TargetBlend holds the quality specification. Flash and API are lower
// bounds, viscosity is a [MinViscosity, MaxViscosity] range and every other
// field is an upper bound.
type TargetBlend struct {
	API          float64 `json:"API" yaml:"API"`
	MinViscosity float64 `json:"minViscosity" yaml:"minViscosity"`
	MaxViscosity float64 `json:"maxViscosity" yaml:"maxViscosity"`
	SulfurPcnt   float64 `json:"SulfurPcnt" yaml:"SulfurPcnt"`
	V            float64 `json:"V" yaml:"V"`
	Na           float64 `json:"Na" yaml:"Na"`
	WaterPcnt    float64 `json:"WaterPcnt" yaml:"WaterPcnt"`
	Si           float64 `json:"Si" yaml:"Si"`
	AlSi         float64 `json:"AlSi" yaml:"AlSi"`
	AsphPcnt     float64 `json:"AsphPcnt" yaml:"AsphPcnt"`
	MCRTPcnt     float64 `json:"MCRTPcnt" yaml:"MCRTPcnt"`
	Flash        float64 `json:"Flash" yaml:"Flash"`
	CCAI         float64 `json:"CCAI" yaml:"CCAI"`
}

// Allocation is the volume drawn from each tank, in tank order.
type Allocation []float64

// IntermediateTankValues are the quantities derived from a single tank and
// its allocated volume.
type IntermediateTankValues struct {
	Volume          float64 `json:"volume"`
	SpecificGravity float64 `json:"specificGravity"`
	Mass            float64 `json:"Mt"`
	CostPerMass     float64 `json:"costMT"`
	ViscosityIndex  float64 `json:"Hf"`
	FlashIndex      float64 `json:"flashTotal"`
	VolumeGravity   float64 `json:"specificGravityTotal"`
	VolumeCost      float64 `json:"totalCost"`
	SulfurMass      float64 `json:"Smt"`
	VanadiumMass    float64 `json:"Vmt"`
	SodiumMass      float64 `json:"Namt"`
	WaterMass       float64 `json:"Ashmt"`
	SiliconMass     float64 `json:"Simt"`
	AluminumMass    float64 `json:"Almt"`
	AsphalteneMass  float64 `json:"Asphmt"`
	MCRMass         float64 `json:"CCRmt"`
}

// AggregateBlend is the blend produced by an allocation.
type AggregateBlend struct {
	Volume          float64 `json:"Volume" yaml:"Volume"`
	TotalMass       float64 `json:"totalMt" yaml:"totalMt"`
	SpecificGravity float64 `json:"specificGravity" yaml:"specificGravity"`
	API             float64 `json:"API" yaml:"API"`
	Viscosity       float64 `json:"Viscosity" yaml:"Viscosity"`
	Cost            float64 `json:"Cost" yaml:"Cost"`
	SulfurPcnt      float64 `json:"SulfurPcnt" yaml:"SulfurPcnt"`
	Flash           float64 `json:"Flash" yaml:"Flash"`
	WaterPcnt       float64 `json:"WaterPcnt" yaml:"WaterPcnt"`
	AsphPcnt        float64 `json:"AsphPcnt" yaml:"AsphPcnt"`
	AlSi            float64 `json:"AlSi" yaml:"AlSi"`
	Si              float64 `json:"Si" yaml:"Si"`
	V               float64 `json:"V" yaml:"V"`
	Na              float64 `json:"Na" yaml:"Na"`
	MCRTPcnt        float64 `json:"MCRTPcnt" yaml:"MCRTPcnt"`
	Density         float64 `json:"Density" yaml:"Density"`
	CCAI            float64 `json:"CCAI" yaml:"CCAI"`
}

// Bounds returns the per-tank volume bounds in tank order.
func Bounds(tanks []Tank) (lower, upper []float64) {
	lower = make([]float64, len(tanks))
	upper = make([]float64, len(tanks))
	for i, t := range tanks {
		lower[i] = t.MinimumVolume
		upper[i] = t.MaximumVolume
	}
	return lower, upper
}
