package langdetect

import (
	"math"
)

// featureVector is the small acoustic fingerprint extracted from one chunk.
type featureVector struct {
	Energy       float64 // RMS, normalized to [0,1]
	ZeroCrossing float64 // crossings per sample
	Centroid     float64 // spectral centroid approximation, Hz
	Pitch        float64 // fundamental estimate via autocorrelation, Hz
	Formant1     float64 // coarse first formant peak, Hz
	Formant2     float64 // coarse second formant peak, Hz
}

// Center frequencies of the coarse filter bank used for formant peaks.
var formantBands = []float64{300, 500, 700, 900, 1200, 1600, 2000, 2500, 3000, 3400}

func extractFeatures(samples []int16, rate int) featureVector {
	n := len(samples)
	if n == 0 || rate <= 0 {
		return featureVector{}
	}

	var sumSq float64
	crossings := 0
	for i, s := range samples {
		f := float64(s)
		sumSq += f * f
		if i > 0 && (samples[i-1] >= 0) != (s >= 0) {
			crossings++
		}
	}
	rms := math.Sqrt(sumSq/float64(n)) / 32768.0
	zcr := float64(crossings) / float64(n)

	return featureVector{
		Energy:       rms,
		ZeroCrossing: zcr,
		Centroid:     spectralCentroid(samples, rate, sumSq),
		Pitch:        autocorrelationPitch(samples, rate),
		Formant1:     0, // filled below
		Formant2:     0,
	}.withFormants(samples, rate)
}

// spectralCentroid approximates the centroid from the ratio of first-difference
// energy to signal energy. Cheap, but tracks brightness well enough for the
// coarse profile matching done here.
func spectralCentroid(samples []int16, rate int, sumSq float64) float64 {
	if sumSq == 0 {
		return 0
	}
	var diffSq float64
	for i := 1; i < len(samples); i++ {
		d := float64(samples[i]) - float64(samples[i-1])
		diffSq += d * d
	}
	return float64(rate) / (2 * math.Pi) * math.Sqrt(diffSq/sumSq)
}

// autocorrelationPitch searches the 60-400 Hz lag range for the strongest
// normalized autocorrelation peak. Returns 0 when no periodic structure shows.
func autocorrelationPitch(samples []int16, rate int) float64 {
	minLag := rate / 400
	maxLag := rate / 60
	if maxLag >= len(samples) {
		maxLag = len(samples) - 1
	}
	if minLag < 2 || minLag >= maxLag {
		return 0
	}

	var energy float64
	for _, s := range samples {
		energy += float64(s) * float64(s)
	}
	if energy == 0 {
		return 0
	}

	bestLag := 0
	bestCorr := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		for i := 0; i+lag < len(samples); i++ {
			corr += float64(samples[i]) * float64(samples[i+lag])
		}
		corr /= energy
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}
	// Below this the chunk is noise-like, not voiced speech.
	if bestCorr < 0.3 || bestLag == 0 {
		return 0
	}
	return float64(rate) / float64(bestLag)
}

// withFormants fills the two strongest band centers from a Goertzel filter
// bank as coarse formant estimates.
func (v featureVector) withFormants(samples []int16, rate int) featureVector {
	type bandPower struct {
		freq  float64
		power float64
	}
	powers := make([]bandPower, 0, len(formantBands))
	for _, f := range formantBands {
		if f >= float64(rate)/2 {
			continue
		}
		powers = append(powers, bandPower{freq: f, power: goertzel(samples, rate, f)})
	}

	var first, second bandPower
	for _, p := range powers {
		if p.power > first.power {
			second = first
			first = p
		} else if p.power > second.power {
			second = p
		}
	}
	if first.freq > second.freq && second.freq != 0 {
		first, second = second, first
	}
	v.Formant1 = first.freq
	v.Formant2 = second.freq
	return v
}

func goertzel(samples []int16, rate int, freq float64) float64 {
	omega := 2 * math.Pi * freq / float64(rate)
	coeff := 2 * math.Cos(omega)
	var s0, s1, s2 float64
	for _, s := range samples {
		s0 = float64(s) + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	return s1*s1 + s2*s2 - coeff*s1*s2
}
