package blend

// permissiveTarget accepts any finite blend.
func permissiveTarget() TargetBlend {
	return TargetBlend{
		API:          -1e9,
		MinViscosity: -1e9,
		MaxViscosity: 1e9,
		SulfurPcnt:   1e9,
		V:            1e9,
		Na:           1e9,
		WaterPcnt:    1e9,
		Si:           1e9,
		AlSi:         1e9,
		AsphPcnt:     1e9,
		MCRTPcnt:     1e9,
		Flash:        -1e9,
		CCAI:         1e9,
	}
}

func sampleTanks() []Tank {
	return []Tank{
		{Name: "HSFO", API: 12.5, Cost: 410, Viscosity: 380, SulfurPcnt: 2.8, V: 180, Na: 30, WaterPcnt: 0.3, Si: 15, AlSi: 25, AsphPcnt: 8, MCRTPcnt: 14, Flash: 75, MinimumVolume: 0, MaximumVolume: 5000},
		{Name: "LSMGO", API: 35, Cost: 690, Viscosity: 3.5, SulfurPcnt: 0.08, V: 0, Na: 0, WaterPcnt: 0.02, Si: 0, AlSi: 0, AsphPcnt: 0, MCRTPcnt: 0.1, Flash: 68, MinimumVolume: 100, MaximumVolume: 2000},
		{Name: "VLSFO", API: 18, Cost: 560, Viscosity: 180, SulfurPcnt: 0.5, V: 60, Na: 15, WaterPcnt: 0.1, Si: 8, AlSi: 12, AsphPcnt: 4, MCRTPcnt: 9, Flash: 70, MinimumVolume: 0, MaximumVolume: 3000},
	}
}
