package vectorstore

import "testing"

func TestStructurePointIDDeterministic(t *testing.T) {
	a := structurePointID("doc1", 3)
	b := structurePointID("doc1", 3)
	if a != b {
		t.Fatalf("structurePointID not deterministic: %q vs %q", a, b)
	}
	if a == structurePointID("doc1", 4) {
		t.Fatalf("structurePointID collided across pages")
	}
}
