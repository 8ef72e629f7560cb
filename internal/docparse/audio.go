package docparse

import (
	"fmt"
	"os"
	"strings"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"

	"docintel/internal/model"
)

// ExtractAudioMetadata reads ID3/Vorbis-style tags and basic audio
// properties from an mp3 or wav file, before any ASR pass runs (spec §4.3:
// "extract ID3 + audio properties before invoking ASR"). It returns the
// decoded metadata and the raw album-art bytes, if embedded.
func ExtractAudioMetadata(path string) (model.AudioMetadata, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.AudioMetadata{}, nil, fmt.Errorf("docparse: open audio file: %w", err)
	}
	defer f.Close()

	isWav := hasExt(path, ".wav")
	meta := model.AudioMetadata{Format: "mp3"}
	if isWav {
		meta.Format = "wav"
	}

	var art []byte
	if m, tagErr := tag.ReadFrom(f); tagErr == nil {
		meta.Title = m.Title()
		meta.Artist = m.Artist()
		meta.Album = m.Album()
		meta.AlbumArtist = m.AlbumArtist()
		meta.Genre = m.Genre()
		meta.Composer = m.Composer()
		meta.Comment = m.Comment()
		if y := m.Year(); y != 0 {
			meta.Year = fmt.Sprintf("%d", y)
		}
		if track, _ := m.Track(); track != 0 {
			meta.TrackNumber = fmt.Sprintf("%d", track)
		}
		if pic := m.Picture(); pic != nil {
			art = pic.Data
			meta.AlbumArtMime = pic.MIMEType
			meta.AlbumArtSize = int64(len(pic.Data))
		}
	}

	if isWav {
		if _, seekErr := f.Seek(0, 0); seekErr == nil {
			dec := wav.NewDecoder(f)
			if dec.IsValidFile() {
				dec.ReadInfo()
				meta.SampleRateHz = int(dec.SampleRate)
				meta.Channels = int(dec.NumChans)
				meta.BitrateKbps = int(dec.SampleRate) * int(dec.NumChans) * int(dec.BitDepth) / 1000
				if dur, durErr := dec.Duration(); durErr == nil {
					meta.DurationS = dur.Seconds()
				}
			}
		}
	} else if info, statErr := f.Stat(); statErr == nil {
		// No MP3 frame-header parser exists anywhere in the reference
		// corpus; approximate duration from file size at a fixed nominal
		// bitrate rather than hand-rolling a frame decoder (see DESIGN.md).
		const nominalKbps = 128
		meta.BitrateKbps = nominalKbps
		meta.DurationS = float64(info.Size()*8) / float64(nominalKbps*1000)
	}

	return meta, art, nil
}

func hasExt(path, ext string) bool {
	return strings.HasSuffix(strings.ToLower(path), ext)
}
