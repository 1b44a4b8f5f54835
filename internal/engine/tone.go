package engine

import (
	"bytes"
	"encoding/binary"
	"math"
)

// toneMaxSeconds caps the placeholder's length so a 300-second request does
// not produce a 300-second beep.
const toneMaxSeconds = 60

// sineWAV renders a mono PCM16 sine tone as a complete RIFF/WAVE file.
// Deterministic for a given (seconds, sampleRate, freq).
func sineWAV(seconds, sampleRate int, freq float64) []byte {
	if seconds < 1 {
		seconds = 1
	}
	if seconds > toneMaxSeconds {
		seconds = toneMaxSeconds
	}

	nSamples := seconds * sampleRate
	const amp = 0.2
	frames := make([]byte, 0, nSamples*2)
	var sample [2]byte
	for i := 0; i < nSamples; i++ {
		t := float64(i) / float64(sampleRate)
		v := int16(amp * 32767.0 * math.Sin(2.0*math.Pi*freq*t))
		binary.LittleEndian.PutUint16(sample[:], uint16(v))
		frames = append(frames, sample[0], sample[1])
	}

	const (
		numChannels   = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8
	dataSize := len(frames)

	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(frames)
	return buf.Bytes()
}
