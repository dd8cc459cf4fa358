package audio

// G.711 mu-law companding. Decode is exact; encode clips at the
// standard 32635 ceiling.

const (
	muLawBias = 0x84
	muLawClip = 32635
)

// DecodeMuLaw expands mu-law bytes to 16-bit linear PCM.
func DecodeMuLaw(data []byte) []int16 {
	pcm := make([]int16, len(data))
	for i, b := range data {
		pcm[i] = decodeMuLawSample(b)
	}
	return pcm
}

// EncodeMuLaw compresses 16-bit linear PCM to mu-law bytes.
func EncodeMuLaw(pcm []int16) []byte {
	out := make([]byte, len(pcm))
	for i, s := range pcm {
		out[i] = encodeMuLawSample(s)
	}
	return out
}

func decodeMuLawSample(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F
	v := (int32(mantissa)<<3 + muLawBias) << exponent
	v -= muLawBias
	if sign != 0 {
		return int16(-v)
	}
	return int16(v)
}

func encodeMuLawSample(s int16) byte {
	var sign byte
	v := int32(s)
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > muLawClip {
		v = muLawClip
	}
	v += muLawBias
	exponent := byte(7)
	for mask := int32(0x4000); exponent > 0 && v&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((v >> (exponent + 3)) & 0x0F)
	return ^(sign | exponent<<4 | mantissa)
}
