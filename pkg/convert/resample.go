package convert

// Resample converts between sample rates with linear interpolation. This is a
// deliberately cheap, lossy resampler: telephony-band speech survives it and
// the real-time path cannot afford a polyphase filter. Duration is preserved
// to within one sample.
func Resample(in []int16, from, to int) []int16 {
	if from == to || from <= 0 || to <= 0 || len(in) == 0 {
		out := make([]int16, len(in))
		copy(out, in)
		return out
	}
	n := int(int64(len(in)) * int64(to) / int64(from))
	if n == 0 {
		return nil
	}
	out := make([]int16, n)
	step := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(j)
		s0 := float64(in[j])
		s1 := float64(in[j+1])
		out[i] = int16(s0 + (s1-s0)*frac)
	}
	return out
}
