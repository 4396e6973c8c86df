package blend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Input is a normalized optimization problem: the tank set and the target.
type Input struct {
	Tanks       []Tank      `json:"tanks" yaml:"tanks"`
	TargetBlend TargetBlend `json:"targetBlend" yaml:"targetBlend"`
}

// Number decodes a JSON number, a numeric string, or a blank value.
// Blank strings and null decode to zero.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("not a finite number: %q", s)
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

type tankRecord struct {
	Name          string `json:"name"`
	API           Number `json:"API"`
	Cost          Number `json:"Cost"`
	Viscosity     Number `json:"Viscosity"`
	SulfurPcnt    Number `json:"SulfurPcnt"`
	V             Number `json:"V"`
	Na            Number `json:"Na"`
	WaterPcnt     Number `json:"WaterPcnt"`
	Si            Number `json:"Si"`
	AlSi          Number `json:"AlSi"`
	AsphPcnt      Number `json:"AsphPcnt"`
	MCRTPcnt      Number `json:"MCRTPcnt"`
	Flash         Number `json:"Flash"`
	MinimumVolume Number `json:"minimumVolume"`
	MaximumVolume Number `json:"maximumVolume"`
}

type targetRecord struct {
	API          Number `json:"API"`
	MinViscosity Number `json:"minViscosity"`
	MaxViscosity Number `json:"maxViscosity"`
	SulfurPcnt   Number `json:"SulfurPcnt"`
	V            Number `json:"V"`
	Na           Number `json:"Na"`
	WaterPcnt    Number `json:"WaterPcnt"`
	Si           Number `json:"Si"`
	AlSi         Number `json:"AlSi"`
	AsphPcnt     Number `json:"AsphPcnt"`
	MCRTPcnt     Number `json:"MCRTPcnt"`
	Flash        Number `json:"Flash"`
	CCAI         Number `json:"CCAI"`
}

type inputRecord struct {
	Tanks       []tankRecord  `json:"tanks"`
	TargetBlend *targetRecord `json:"targetBlend"`
}

func (r tankRecord) tank() Tank {
	return Tank{
		Name:          r.Name,
		API:           float64(r.API),
		Cost:          float64(r.Cost),
		Viscosity:     float64(r.Viscosity),
		SulfurPcnt:    float64(r.SulfurPcnt),
		V:             float64(r.V),
		Na:            float64(r.Na),
		WaterPcnt:     float64(r.WaterPcnt),
		Si:            float64(r.Si),
		AlSi:          float64(r.AlSi),
		AsphPcnt:      float64(r.AsphPcnt),
		MCRTPcnt:      float64(r.MCRTPcnt),
		Flash:         float64(r.Flash),
		MinimumVolume: float64(r.MinimumVolume),
		MaximumVolume: float64(r.MaximumVolume),
	}
}

func (r targetRecord) target() TargetBlend {
	return TargetBlend{
		API:          float64(r.API),
		MinViscosity: float64(r.MinViscosity),
		MaxViscosity: float64(r.MaxViscosity),
		SulfurPcnt:   float64(r.SulfurPcnt),
		V:            float64(r.V),
		Na:           float64(r.Na),
		WaterPcnt:    float64(r.WaterPcnt),
		Si:           float64(r.Si),
		AlSi:         float64(r.AlSi),
		AsphPcnt:     float64(r.AsphPcnt),
		MCRTPcnt:     float64(r.MCRTPcnt),
		Flash:        float64(r.Flash),
		CCAI:         float64(r.CCAI),
	}
}

// DecodeInput reads an input document, normalizes blank numeric fields to
// zero and validates the result. All failures are *InputError.
func DecodeInput(r io.Reader) (Input, error) {
	var rec inputRecord
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return Input{}, &InputError{Reason: "is not a valid input document", Err: err}
	}
	if rec.TargetBlend == nil {
		return Input{}, &InputError{Field: "targetBlend", Reason: "is missing"}
	}

	in := Input{
		Tanks:       make([]Tank, len(rec.Tanks)),
		TargetBlend: rec.TargetBlend.target(),
	}
	for i, t := range rec.Tanks {
		in.Tanks[i] = t.tank()
	}
	if err := in.Validate(); err != nil {
		return Input{}, err
	}
	return in, nil
}

// LoadInput reads and decodes the input document at path.
func LoadInput(path string) (Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return Input{}, &InputError{Field: path, Reason: "cannot be read", Err: err}
	}
	defer f.Close()

	return DecodeInput(f)
}

// Validate checks the structural requirements of a problem: at least one
// tank, finite values everywhere and ordered, non-negative volume bounds.
func (in Input) Validate() error {
	if len(in.Tanks) == 0 {
		return &InputError{Field: "tanks", Reason: "must contain at least one tank"}
	}
	if name, ok := firstNonFiniteField(targetFields(in.TargetBlend)); ok {
		return &InputError{Field: "targetBlend." + name, Reason: "must be finite"}
	}
	for i, t := range in.Tanks {
		field := fmt.Sprintf("tanks[%d]", i)
		if name, ok := firstNonFiniteField(tankFields(t)); ok {
			return &InputError{Field: field + "." + name, Reason: "must be finite"}
		}
		if t.MinimumVolume < 0 {
			return &InputError{Field: field + ".minimumVolume", Reason: "cannot be negative"}
		}
		if t.MinimumVolume > t.MaximumVolume {
			return &InputError{Field: field, Reason: "has minimumVolume above maximumVolume"}
		}
	}
	return nil
}

type namedValue struct {
	name  string
	value float64
}

func tankFields(t Tank) []namedValue {
	return []namedValue{
		{"API", t.API}, {"Cost", t.Cost}, {"Viscosity", t.Viscosity},
		{"SulfurPcnt", t.SulfurPcnt}, {"V", t.V}, {"Na", t.Na},
		{"WaterPcnt", t.WaterPcnt}, {"Si", t.Si}, {"AlSi", t.AlSi},
		{"AsphPcnt", t.AsphPcnt}, {"MCRTPcnt", t.MCRTPcnt}, {"Flash", t.Flash},
		{"minimumVolume", t.MinimumVolume}, {"maximumVolume", t.MaximumVolume},
	}
}

func targetFields(tb TargetBlend) []namedValue {
	return []namedValue{
		{"API", tb.API}, {"minViscosity", tb.MinViscosity}, {"maxViscosity", tb.MaxViscosity},
		{"SulfurPcnt", tb.SulfurPcnt}, {"V", tb.V}, {"Na", tb.Na},
		{"WaterPcnt", tb.WaterPcnt}, {"Si", tb.Si}, {"AlSi", tb.AlSi},
		{"AsphPcnt", tb.AsphPcnt}, {"MCRTPcnt", tb.MCRTPcnt}, {"Flash", tb.Flash},
		{"CCAI", tb.CCAI},
	}
}

func firstNonFiniteField(fields []namedValue) (string, bool) {
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return f.name, true
		}
	}
	return "", false
}
