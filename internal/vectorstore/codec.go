package vectorstore

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"math"

	"docintel/internal/model"
)

// EncodeMultiVector serialises a (T, D) multi-vector tensor into a compact,
// gzip-compressed byte form suitable for a Qdrant payload field: a 2×uint32
// header (T, D) followed by T*D little-endian float32 values.
func EncodeMultiVector(mv model.MultiVector) ([]byte, error) {
	t := len(mv)
	d := 0
	if t > 0 {
		d = len(mv[0])
	}
	var raw bytes.Buffer
	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:4], uint32(t))
	binary.LittleEndian.PutUint32(header[4:8], uint32(d))
	raw.Write(header)
	buf4 := make([]byte, 4)
	for _, row := range mv {
		if len(row) != d {
			return nil, fmt.Errorf("vectorstore: ragged multivector, row has %d cols, want %d", len(row), d)
		}
		for _, v := range row {
			binary.LittleEndian.PutUint32(buf4, math.Float32bits(v))
			raw.Write(buf4)
		}
	}

	var compressed bytes.Buffer
	w := gzip.NewWriter(&compressed)
	if _, err := w.Write(raw.Bytes()); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("vectorstore: compress multivector: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("vectorstore: compress multivector: %w", err)
	}
	return compressed.Bytes(), nil
}

// DecodeMultiVector reverses EncodeMultiVector.
func DecodeMultiVector(blob []byte) (model.MultiVector, error) {
	r, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	defer r.Close()
	var raw bytes.Buffer
	if _, err := raw.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	data := raw.Bytes()
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: truncated header", ErrCorrupted)
	}
	t := int(binary.LittleEndian.Uint32(data[0:4]))
	d := int(binary.LittleEndian.Uint32(data[4:8]))
	want := 8 + t*d*4
	if len(data) < want {
		return nil, fmt.Errorf("%w: truncated body", ErrCorrupted)
	}
	mv := make(model.MultiVector, t)
	pos := 8
	for i := 0; i < t; i++ {
		row := make([]float32, d)
		for j := 0; j < d; j++ {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[pos : pos+4]))
			pos += 4
		}
		mv[i] = row
	}
	return mv, nil
}

// MeanPool collapses a (T, D) multi-vector to a single D-dim vector by
// averaging over the token axis, the representation the ANN index is built
// on (spec §4.2: "pooled representation of the multivec (mean over token
// axis)").
func MeanPool(mv model.MultiVector) []float32 {
	if len(mv) == 0 {
		return nil
	}
	d := len(mv[0])
	out := make([]float64, d)
	for _, row := range mv {
		for j, v := range row {
			out[j] += float64(v)
		}
	}
	pooled := make([]float32, d)
	for j, sum := range out {
		pooled[j] = float32(sum / float64(len(mv)))
	}
	return pooled
}

// SumOfMax computes the ColBERT/ColPali-style late-interaction score
// S(Q,D) = Σᵢ maxⱼ ⟨qᵢ, dⱼ⟩.
func SumOfMax(query, doc model.MultiVector) float64 {
	var total float64
	for _, q := range query {
		best := math.Inf(-1)
		for _, d := range doc {
			dot := dotProduct(q, d)
			if dot > best {
				best = dot
			}
		}
		if !math.IsInf(best, -1) {
			total += best
		}
	}
	return total
}

func dotProduct(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
