package docparse

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeMinimalWAV hand-builds a tiny mono 16-bit PCM WAV file, the
// smallest fixture that satisfies go-audio/wav's decoder.
func writeMinimalWAV(t *testing.T, path string, sampleRate, numSamples int) {
	t.Helper()
	var data bytes.Buffer
	for i := 0; i < numSamples; i++ {
		_ = binary.Write(&data, binary.LittleEndian, int16(i%100))
	}

	var fmtChunk bytes.Buffer
	_ = binary.Write(&fmtChunk, binary.LittleEndian, uint16(1))           // PCM
	_ = binary.Write(&fmtChunk, binary.LittleEndian, uint16(1))           // mono
	_ = binary.Write(&fmtChunk, binary.LittleEndian, uint32(sampleRate))  // sample rate
	byteRate := uint32(sampleRate * 1 * 16 / 8)
	_ = binary.Write(&fmtChunk, binary.LittleEndian, byteRate)
	_ = binary.Write(&fmtChunk, binary.LittleEndian, uint16(2))  // block align
	_ = binary.Write(&fmtChunk, binary.LittleEndian, uint16(16)) // bits per sample

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(4+8+fmtChunk.Len()+8+data.Len()))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(fmtChunk.Len()))
	buf.Write(fmtChunk.Bytes())
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestExtractAudioMetadataWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	writeMinimalWAV(t, path, 44100, 4410) // 0.1s of audio

	meta, art, err := ExtractAudioMetadata(path)
	require.NoError(t, err)
	assert.Nil(t, art)
	assert.Equal(t, "wav", meta.Format)
	assert.Equal(t, 44100, meta.SampleRateHz)
	assert.Equal(t, 1, meta.Channels)
	assert.InDelta(t, 0.1, meta.DurationS, 0.01)
}

func TestExtractAudioMetadataMP3FallsBackToNominalBitrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp3")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0xFF}, 16000), 0o644))

	meta, _, err := ExtractAudioMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, "mp3", meta.Format)
	assert.Equal(t, 128, meta.BitrateKbps)
	assert.Greater(t, meta.DurationS, 0.0)
}
