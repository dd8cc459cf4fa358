package audio

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/agrisarthi/agrivoice/pkg/errorsx"
)

// ErrMalformedWAV is returned when a container cannot be parsed. The
// caller abandons the current turn; the session keeps running.
var ErrMalformedWAV = errors.New("malformed wav container")

// PCMToWAV wraps mono 16-bit PCM into a RIFF/WAVE container with the
// sample rate embedded in the header.
func PCMToWAV(pcm []int16, rate int) []byte {
	dataSize := len(pcm) * 2
	buf := make([]byte, 44+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(rate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(rate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(buf[44+2*i:], uint16(s))
	}
	return buf
}

// WAVToPCM parses a RIFF/WAVE container into mono 16-bit PCM and its
// sample rate. Stereo is downmixed and 8-bit samples are widened.
func WAVToPCM(wav []byte) ([]int16, int, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, 0, errorsx.Wrap(ErrMalformedWAV, errorsx.ReasonCodecParse)
	}

	var (
		channels   int
		rate       int
		bitsPer    int
		data       []byte
		haveFormat bool
	)

	// Walk chunks; real-world files carry LIST/fact chunks before data.
	off := 12
	for off+8 <= len(wav) {
		id := string(wav[off : off+4])
		size := int(binary.LittleEndian.Uint32(wav[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(wav) {
			return nil, 0, errorsx.Wrap(fmt.Errorf("%w: chunk %q overruns container", ErrMalformedWAV, id), errorsx.ReasonCodecParse)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, errorsx.Wrap(fmt.Errorf("%w: short fmt chunk", ErrMalformedWAV), errorsx.ReasonCodecParse)
			}
			format := binary.LittleEndian.Uint16(wav[body : body+2])
			if format != 1 {
				return nil, 0, errorsx.Wrap(fmt.Errorf("unsupported wav format code %d", format), errorsx.ReasonCodecFormat)
			}
			channels = int(binary.LittleEndian.Uint16(wav[body+2 : body+4]))
			rate = int(binary.LittleEndian.Uint32(wav[body+4 : body+8]))
			bitsPer = int(binary.LittleEndian.Uint16(wav[body+14 : body+16]))
			haveFormat = true
		case "data":
			data = wav[body : body+size]
		}
		off = body + size
		if size%2 == 1 {
			off++ // chunks are word-aligned
		}
	}

	if !haveFormat || data == nil {
		return nil, 0, errorsx.Wrap(fmt.Errorf("%w: missing fmt or data chunk", ErrMalformedWAV), errorsx.ReasonCodecParse)
	}
	if channels < 1 || channels > 2 {
		return nil, 0, errorsx.Wrap(fmt.Errorf("unsupported channel count %d", channels), errorsx.ReasonCodecFormat)
	}

	var pcm []int16
	switch bitsPer {
	case 16:
		pcm = make([]int16, len(data)/2)
		for i := range pcm {
			pcm[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
		}
	case 8:
		// 8-bit WAV is unsigned.
		pcm = make([]int16, len(data))
		for i, b := range data {
			pcm[i] = (int16(b) - 128) << 8
		}
	default:
		return nil, 0, errorsx.Wrap(fmt.Errorf("unsupported sample width %d bits", bitsPer), errorsx.ReasonCodecFormat)
	}

	if channels == 2 {
		pcm = DownmixStereo(pcm)
	}
	return pcm, rate, nil
}

// MuLawFramesToWAV converts buffered inbound telephony frames into a
// WAV container at targetRate for the speech-to-text service.
func MuLawFramesToWAV(frames [][]byte, targetRate int) []byte {
	total := 0
	for _, f := range frames {
		total += len(f)
	}
	joined := make([]byte, 0, total)
	for _, f := range frames {
		joined = append(joined, f...)
	}
	pcm := DecodeMuLaw(joined)
	if targetRate != TelephonyRate {
		pcm = Resample(pcm, TelephonyRate, targetRate)
	}
	return PCMToWAV(pcm, targetRate)
}

// WAVToMuLawFrames converts synthesized WAV audio into 640-byte
// telephony frames. The final frame may be short.
func WAVToMuLawFrames(wav []byte) ([][]byte, error) {
	pcm, rate, err := WAVToPCM(wav)
	if err != nil {
		return nil, err
	}
	if rate != TelephonyRate {
		pcm = Resample(pcm, rate, TelephonyRate)
	}
	mulaw := EncodeMuLaw(pcm)
	frames := make([][]byte, 0, len(mulaw)/FrameBytes+1)
	for i := 0; i < len(mulaw); i += FrameBytes {
		end := i + FrameBytes
		if end > len(mulaw) {
			end = len(mulaw)
		}
		frames = append(frames, mulaw[i:end])
	}
	return frames, nil
}
