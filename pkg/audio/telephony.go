package audio

// Telephony wire format: G.711 mu-law, 8 kHz, mono, one byte per sample.
const (
	TelephonyRate = 8000
	// BytesPerMS is the mu-law byte count for one millisecond of audio.
	BytesPerMS = TelephonyRate / 1000
	// FrameBytes is the outbound chunk size: 640 bytes = 80 ms.
	FrameBytes = 640
	// FrameDuration in milliseconds for a full outbound frame.
	FrameDurationMS = FrameBytes / BytesPerMS
)

// DurationMS returns the playback duration of mu-law audio by byte
// count, which is robust to delivery jitter.
func DurationMS(totalBytes int) int {
	return totalBytes / BytesPerMS
}
