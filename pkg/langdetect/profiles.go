package langdetect

// profile holds the hand-tuned acoustic reference for one language. These
// constants have no training-data provenance; they encode rough phonetic
// tendencies (syllable rhythm, vowel space, pitch register) and nothing more.
// Treat every match as a best-effort hint that downstream logic can overturn.
type profile struct {
	Language string

	ZCRCenter      float64
	ZCRSpread      float64
	CentroidCenter float64
	CentroidSpread float64
	PitchCenter    float64
	PitchSpread    float64
	F1Center       float64
	F1Spread       float64
	F2Center       float64
	F2Spread       float64
}

// Feature weights for the similarity score. Rhythm (ZCR) and brightness carry
// the most signal at telephone bandwidth; formant estimates are the coarsest.
const (
	weightZCR      = 0.30
	weightCentroid = 0.25
	weightPitch    = 0.20
	weightF1       = 0.125
	weightF2       = 0.125
)

var defaultProfiles = []profile{
	{
		Language:       "en",
		ZCRCenter:      0.11, ZCRSpread: 0.05,
		CentroidCenter: 1500, CentroidSpread: 600,
		PitchCenter:    160, PitchSpread: 70,
		F1Center:       550, F1Spread: 250,
		F2Center:       1700, F2Spread: 600,
	},
	{
		Language:       "es",
		ZCRCenter:      0.09, ZCRSpread: 0.04,
		CentroidCenter: 1250, CentroidSpread: 500,
		PitchCenter:    175, PitchSpread: 65,
		F1Center:       500, F1Spread: 200,
		F2Center:       1500, F2Spread: 500,
	},
	{
		Language:       "id",
		ZCRCenter:      0.08, ZCRSpread: 0.04,
		CentroidCenter: 1150, CentroidSpread: 450,
		PitchCenter:    185, PitchSpread: 70,
		F1Center:       480, F1Spread: 200,
		F2Center:       1400, F2Spread: 450,
	},
	{
		Language:       "fr",
		ZCRCenter:      0.10, ZCRSpread: 0.04,
		CentroidCenter: 1400, CentroidSpread: 550,
		PitchCenter:    190, PitchSpread: 75,
		F1Center:       450, F1Spread: 200,
		F2Center:       1600, F2Spread: 550,
	},
	{
		Language:       "de",
		ZCRCenter:      0.12, ZCRSpread: 0.05,
		CentroidCenter: 1600, CentroidSpread: 650,
		PitchCenter:    150, PitchSpread: 65,
		F1Center:       520, F1Spread: 230,
		F2Center:       1650, F2Spread: 600,
	},
	{
		Language:       "ja",
		ZCRCenter:      0.07, ZCRSpread: 0.035,
		CentroidCenter: 1100, CentroidSpread: 450,
		PitchCenter:    210, PitchSpread: 80,
		F1Center:       470, F1Spread: 200,
		F2Center:       1350, F2Spread: 450,
	},
}

// similarity scores a feature vector against one profile in [0,1] using a
// weighted normalized distance per feature.
func (p profile) similarity(v featureVector) float64 {
	score := weightZCR * closeness(v.ZeroCrossing, p.ZCRCenter, p.ZCRSpread)
	score += weightCentroid * closeness(v.Centroid, p.CentroidCenter, p.CentroidSpread)
	if v.Pitch > 0 {
		score += weightPitch * closeness(v.Pitch, p.PitchCenter, p.PitchSpread)
	}
	if v.Formant1 > 0 {
		score += weightF1 * closeness(v.Formant1, p.F1Center, p.F1Spread)
	}
	if v.Formant2 > 0 {
		score += weightF2 * closeness(v.Formant2, p.F2Center, p.F2Spread)
	}
	return score
}

// closeness maps |value-center|/spread to [0,1], 1 at the center and 0 at two
// spreads out.
func closeness(value, center, spread float64) float64 {
	if spread <= 0 {
		return 0
	}
	d := value - center
	if d < 0 {
		d = -d
	}
	norm := d / spread
	if norm >= 2 {
		return 0
	}
	return 1 - norm/2
}
