package ferment

// abvFactor converts a drop in specific gravity into percent alcohol by volume.
const abvFactor = 131.25

// abmFactor is the density ratio of ethanol to water used to turn ABV into ABM.
const abmFactor = 0.79336

// AlcoholByVolume returns the alcohol content by volume for a fermentation that
// started at originalGravity and currently reads specificGravity.
// A reading at or above the original gravity yields zero.
func AlcoholByVolume(originalGravity, specificGravity float64) float64 {
	drop := originalGravity - specificGravity
	if drop <= 0 {
		return 0
	}
	return drop * abvFactor
}

// AlcoholByMass converts alcohol by volume into alcohol by mass.
func AlcoholByMass(abv float64) float64 {
	return abv * abmFactor
}

// candidate is a metric whose value may be absent.
type candidate struct {
	name  MetricName
	value *float64
	unit  string
}

// Derive turns a reading into the metrics to persist. Alcohol metrics are
// only produced when a baseline gravity is known; they are omitted otherwise.
// The returned slice never contains an absent value.
func Derive(r Reading, baseline float64, hasBaseline bool) []Metric {
	temperature := r.TemperatureC
	gravity := r.SpecificGravity

	var abv, abm *float64
	if hasBaseline {
		v := AlcoholByVolume(baseline, gravity)
		m := AlcoholByMass(v)
		abv, abm = &v, &m
	}

	candidates := []candidate{
		{MetricTemperature, &temperature, UnitCelsius},
		{MetricSpecificGravity, &gravity, UnitDimensionless},
		{MetricAlcoholByVolume, abv, UnitVolumePercent},
		{MetricAlcoholByMass, abm, UnitWeightPercent},
	}

	metrics := make([]Metric, 0, len(candidates))
	for _, c := range candidates {
		if c.value == nil {
			continue
		}
		metrics = append(metrics, Metric{Name: c.name, Value: *c.value, Unit: c.unit})
	}
	return metrics
}

// Find returns the metric with the given name, if present.
func Find(metrics []Metric, name MetricName) (Metric, bool) {
	for _, m := range metrics {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}
