package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default("demo")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "demo", cfg.Project.ID)
	assert.Equal(t, 5, cfg.TCR.FailureThreshold)
	assert.Equal(t, []string{"backend", "frontend"}, cfg.TargetNames())
	assert.Equal(t, CoverageLCOV, cfg.TCR.Targets["backend"].Coverage.Format)
	assert.Equal(t, map[string]float64{"lines": 100, "functions": 100}, cfg.TCR.Targets["frontend"].Thresholds.Metrics())
}

func TestFromYAMLFillsOmittedSections(t *testing.T) {
	cfg, err := FromYAML([]byte("project:\n  id: p\nvalidators:\n  disabled: [owner-assigned]\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.TCR.FailureThreshold)
	assert.Equal(t, "tcr", cfg.TCR.CommitPrefix)
	assert.Len(t, cfg.TCR.Targets, 2)
	assert.Equal(t, "/v0", cfg.Server.BasePath)
	assert.True(t, cfg.ValidatorDisabled("owner-assigned"))
	assert.False(t, cfg.ValidatorDisabled("bdd-scenarios"))
}

func TestThresholdOverride(t *testing.T) {
	cfg, err := FromYAML([]byte(`project:
  id: p
tcr:
  targets:
    web:
      paths: [web/]
      test_command: npm test
      coverage:
        format: istanbul
        path: coverage/coverage-summary.json
      thresholds:
        lines: 80
`))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"lines": 80, "functions": 100}, cfg.TCR.Targets["web"].Thresholds.Metrics())
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"unknown format": "project:\n  id: p\ntcr:\n  targets:\n    web:\n      paths: [web/]\n      test_command: t\n      coverage:\n        format: xml\n        path: c\n",
		"no paths":       "project:\n  id: p\ntcr:\n  targets:\n    web:\n      test_command: t\n      coverage:\n        format: lcov\n        path: c\n",
		"bad threshold":  "project:\n  id: p\ntcr:\n  targets:\n    web:\n      paths: [web/]\n      test_command: t\n      coverage:\n        format: lcov\n        path: c\n      thresholds:\n        lines: 120\n",
		"no project":     "tcr:\n  failure_threshold: 3\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), cfg.Project.ID)

	require.NoError(t, os.WriteFile(Path(dir), []byte(GenerateDefault("written")), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "written", cfg.Project.ID)

	require.NoError(t, os.WriteFile(Path(dir), []byte("project: [broken"), 0o644))
	_, err = LoadOptional(dir)
	assert.Error(t, err)
}
