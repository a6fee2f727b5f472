package transcode

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/harunnryd/scenecue/pkg/errorsx"
)

// DecodeF32LE parses raw little-endian float32 samples.
func DecodeF32LE(raw []byte) ([]float32, error) {
	if len(raw) == 0 {
		return nil, errorsx.Newf(errorsx.ReasonAudioDecode, "pcm: empty waveform")
	}
	if len(raw)%4 != 0 {
		return nil, errorsx.Newf(errorsx.ReasonAudioDecode, "pcm: %d bytes is not a whole number of float32 samples", len(raw))
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}

// EncodeF32LE is the inverse of DecodeF32LE.
func EncodeF32LE(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

// ReadF32LE loads a transcoded PCM file.
func ReadF32LE(path string) ([]float32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("read pcm: %w", err), errorsx.ReasonAudioDecode)
	}
	return DecodeF32LE(raw)
}
