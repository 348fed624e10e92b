package tcr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stageline/internal/config"
)

func defaultDetector() Detector {
	return NewDetector(config.Default("p").TCR.Targets)
}

func TestClassifyByPrefixAndExtension(t *testing.T) {
	cs := defaultDetector().Classify([]string{
		"src/App.tsx",
		"./src/lib/store.ts",
		"src-tauri/src/main.rs",
		"src/notes.txt",
		"README.md",
		"src/App.tsx",
	})
	assert.Equal(t, []string{"backend", "frontend"}, cs.Targets())
	assert.Equal(t, []string{"src/App.tsx", "src/lib/store.ts"}, cs.ByTarget["frontend"])
	assert.Equal(t, []string{"src-tauri/src/main.rs"}, cs.ByTarget["backend"])
	assert.Equal(t, []string{"README.md", "src/notes.txt"}, cs.Unmatched)
	assert.Equal(t, "both", cs.Label())
	assert.Len(t, cs.Files, 5)
}

func TestClassifySingleTargetAndEmpty(t *testing.T) {
	d := defaultDetector()
	cs := d.Classify([]string{"src-tauri/Cargo.rs"})
	assert.Equal(t, "backend", cs.Label())

	empty := d.Classify(nil)
	assert.True(t, empty.Empty())
	assert.Equal(t, "none", empty.Label())

	docsOnly := d.Classify([]string{"docs/guide.md"})
	assert.True(t, docsOnly.Empty())
}

func TestClassifyFirstTargetWins(t *testing.T) {
	d := NewDetector(map[string]config.Target{
		"b-wide":   {Paths: []string{"pkg/"}},
		"a-narrow": {Paths: []string{"pkg/api/"}},
	})
	cs := d.Classify([]string{"pkg/api/handler.go", "pkg/util.go"})
	assert.Equal(t, []string{"pkg/api/handler.go"}, cs.ByTarget["a-narrow"])
	assert.Equal(t, []string{"pkg/util.go"}, cs.ByTarget["b-wide"])
}

func TestClassifyIsDeterministic(t *testing.T) {
	d := defaultDetector()
	in := []string{"src/b.ts", "src-tauri/x.rs", "src/a.ts"}
	first := d.Classify(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, d.Classify([]string{"src/a.ts", "src-tauri/x.rs", "src/b.ts"}))
	}
}
