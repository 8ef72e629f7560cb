package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBBoxValid(t *testing.T) {
	cases := []struct {
		name   string
		b      BBox
		w, h   float64
		expect bool
	}{
		{"ok", BBox{10, 20, 100, 200}, 612, 792, true},
		{"inverted left/right", BBox{100, 20, 10, 200}, 612, 792, false},
		{"inverted bottom/top", BBox{10, 200, 100, 20}, 612, 792, false},
		{"negative left", BBox{-5, 20, 100, 200}, 612, 792, false},
		{"right beyond page width", BBox{10, 20, 700, 200}, 612, 792, false},
		{"top beyond page height", BBox{10, 20, 100, 900}, 612, 792, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expect, c.b.Valid(c.w, c.h))
		})
	}
}

func TestBBoxUnion(t *testing.T) {
	a := BBox{Left: 10, Bottom: 10, Right: 50, Top: 50}
	b := BBox{Left: 40, Bottom: 5, Right: 80, Top: 60}
	u := a.Union(b)
	assert.Equal(t, BBox{Left: 10, Bottom: 5, Right: 80, Top: 60}, u)
}
