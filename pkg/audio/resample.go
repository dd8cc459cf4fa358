package audio

// Resample converts PCM between sample rates by linear interpolation.
// Identity when the rates already match.
func Resample(pcm []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(pcm) == 0 || fromRate <= 0 || toRate <= 0 {
		return pcm
	}
	n := int(int64(len(pcm)) * int64(toRate) / int64(fromRate))
	if n == 0 {
		n = 1
	}
	out := make([]int16, n)
	step := float64(fromRate) / float64(toRate)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= len(pcm)-1 {
			out[i] = pcm[len(pcm)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = int16(float64(pcm[j])*(1-frac) + float64(pcm[j+1])*frac)
	}
	return out
}

// DownmixStereo averages interleaved stereo PCM to mono.
func DownmixStereo(pcm []int16) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16((int32(pcm[2*i]) + int32(pcm[2*i+1])) / 2)
	}
	return out
}
