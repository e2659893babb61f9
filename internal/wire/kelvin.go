package wire

// KelvinRange is the configurable white-temperature range devices are
// assumed to span; 0 maps to Min, 100 to Max.
type KelvinRange struct {
	Min int
	Max int
}

// DefaultKelvinRange is the factory default, per external-interface config.
var DefaultKelvinRange = KelvinRange{Min: 2000, Max: 7000}

// Kelvin converts a 0-100 Cync white-temperature percent into Kelvin.
func (r KelvinRange) Kelvin(pct int) int {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return r.Min + (pct*(r.Max-r.Min))/100
}

// CyncPercent converts a Kelvin value back into a 0-100 Cync percent,
// rounding to the nearest integer.
func (r KelvinRange) CyncPercent(kelvin int) int {
	span := r.Max - r.Min
	if span <= 0 {
		return 0
	}
	scaled := (kelvin-r.Min)*100 + span/2 // round to nearest
	pct := scaled / span
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}
