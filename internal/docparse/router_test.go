package docparse

import "testing"

func TestClassify(t *testing.T) {
	cases := map[string]Pipeline{
		"report.pdf":     PipelineVisual,
		"scan.PNG":       PipelineVisual,
		"notes.docx":     PipelineTextOnly,
		"readme.md":      PipelineTextOnly,
		"captions.vtt":   PipelineTextOnly,
		"call.mp3":       PipelineAudio,
		"call.wav":       PipelineAudio,
		"legacy.doc":     PipelineLegacyOffice,
		"template.dot":   PipelineLegacyOffice,
		"archive.zip":    PipelineUnsupported,
		"noextension":    PipelineUnsupported,
	}
	for name, want := range cases {
		if got := Classify(name); got != want {
			t.Errorf("Classify(%q) = %q, want %q", name, got, want)
		}
	}
}
