package convert

// G.711 companding. Both laws map 16-bit linear PCM to 8-bit logarithmic
// samples; the round trip is lossy but bounded, which is acceptable for the
// 8 kHz telephony legs this pipeline carries.

const (
	muLawBias = 0x84
	muLawClip = 32635
	aLawClip  = 32635
)

// LinearToMuLaw compands one 16-bit sample to µ-law.
func LinearToMuLaw(sample int16) byte {
	v := int32(sample)
	sign := byte(0)
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > muLawClip {
		v = muLawClip
	}
	v += muLawBias
	exp := byte(7)
	for mask := int32(0x4000); v&mask == 0 && exp > 0; mask >>= 1 {
		exp--
	}
	mant := byte((v >> (exp + 3)) & 0x0F)
	return ^(sign | exp<<4 | mant)
}

// MuLawToLinear expands one µ-law byte back to 16-bit linear PCM.
func MuLawToLinear(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exp := (b >> 4) & 0x07
	mant := b & 0x0F
	v := (int32(mant)<<3 + muLawBias) << exp
	v -= muLawBias
	if sign != 0 {
		v = -v
	}
	return int16(v)
}

// LinearToALaw compands one 16-bit sample to A-law.
func LinearToALaw(sample int16) byte {
	v := int32(sample)
	sign := byte(0x80)
	if v < 0 {
		v = -v - 1
		sign = 0
	}
	if v > aLawClip {
		v = aLawClip
	}
	var comp byte
	if v >= 256 {
		exp := byte(7)
		for mask := int32(0x4000); v&mask == 0 && exp > 1; mask >>= 1 {
			exp--
		}
		mant := byte((v >> (exp + 3)) & 0x0F)
		comp = exp<<4 | mant
	} else {
		comp = byte(v >> 4)
	}
	return (comp | sign) ^ 0x55
}

// ALawToLinear expands one A-law byte back to 16-bit linear PCM.
func ALawToLinear(b byte) int16 {
	b ^= 0x55
	t := int32(b&0x0F) << 4
	seg := (int32(b) & 0x70) >> 4
	switch seg {
	case 0:
		t += 8
	case 1:
		t += 0x108
	default:
		t += 0x108
		t <<= uint(seg - 1)
	}
	if b&0x80 != 0 {
		return int16(t)
	}
	return int16(-t)
}
