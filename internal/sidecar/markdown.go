// Package sidecar persists bulky per-document artefacts that do not belong
// in the vector store proper: page images, thumbnails, album art, and the
// compressed full-document markdown and structure blobs.
package sidecar

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"fmt"

	"docintel/internal/model"
)

// ErrMarkdownTooLarge is returned when uncompressed markdown exceeds the hard cap.
var ErrMarkdownTooLarge = errors.New("sidecar: markdown exceeds 10 MiB hard cap")

// ErrCorrupted is returned when a compressed blob fails to decompress.
var ErrCorrupted = errors.New("sidecar: corrupted compressed blob")

const (
	inlineThreshold = 1024             // 1 KiB
	hardCap         = 10 * 1024 * 1024 // 10 MiB
)

// EncodeMarkdown applies the inline/compressed policy from §4.4: markdown up
// to 1 KiB is stored inline with no compression; larger markdown is
// gzip-compressed and base64-encoded. Markdown beyond the 10 MiB uncompressed
// cap is rejected.
//
// Compression is deterministic (gzip.BestCompression, fixed header) so that
// repeated calls on identical input produce byte-identical output.
func EncodeMarkdown(markdown string) (model.FullMarkdown, error) {
	if len(markdown) > hardCap {
		return model.FullMarkdown{}, ErrMarkdownTooLarge
	}
	if len(markdown) <= inlineThreshold {
		return model.FullMarkdown{Body: markdown, Compression: model.MarkdownNone}, nil
	}
	compressed, err := compressDeterministic([]byte(markdown))
	if err != nil {
		return model.FullMarkdown{}, fmt.Errorf("sidecar: compress markdown: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(compressed)
	return model.FullMarkdown{Body: encoded, Compression: model.MarkdownGzipBase64}, nil
}

// DecodeMarkdown reverses EncodeMarkdown. Corruption is reported as
// ErrCorrupted and is non-fatal to the caller: the document survives, only
// the markdown field is unavailable.
func DecodeMarkdown(fm model.FullMarkdown) (string, error) {
	switch fm.Compression {
	case model.MarkdownNone, "":
		return fm.Body, nil
	case model.MarkdownGzipBase64:
		raw, err := base64.StdEncoding.DecodeString(fm.Body)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		plain, err := decompress(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		return string(plain), nil
	default:
		return "", fmt.Errorf("%w: unknown compression %q", ErrCorrupted, fm.Compression)
	}
}

// compressDeterministic gzips data with a fixed mtime/OS header so that
// identical input always yields identical output bytes.
func compressDeterministic(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	w.Header.OS = 255 // "unknown", avoids platform-dependent default
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
