package tcr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIstanbul(t *testing.T) {
	data := []byte(`{"total":{"lines":{"total":50,"covered":46,"pct":92},"functions":{"total":0,"covered":0,"pct":"Unknown"},"branches":{"total":4,"covered":4,"pct":100}}}`)
	cov, err := ParseIstanbul(data)
	require.NoError(t, err)
	assert.Equal(t, Coverage{MetricLines: 92, MetricFunctions: 100}, cov)

	_, err = ParseIstanbul([]byte(`{"files":{}}`))
	assert.Error(t, err)
	_, err = ParseIstanbul([]byte(`{"total":{"lines":{"total":3,"pct":"Unknown"}}}`))
	assert.Error(t, err)
}

func TestParseLCOVAggregatesFiles(t *testing.T) {
	data := []byte(`TN:
SF:src/lib.rs
FNF:4
FNH:4
LF:10
LH:10
end_of_record
SF:src/main.rs
FNF:4
FNH:2
LF:10
LH:8
end_of_record
`)
	cov, err := ParseLCOV(data)
	require.NoError(t, err)
	assert.InDelta(t, 90.0, cov[MetricLines], 0.001)
	assert.InDelta(t, 75.0, cov[MetricFunctions], 0.001)

	_, err = ParseLCOV([]byte("LF:abc\n"))
	assert.Error(t, err)
}

func TestBelowThresholdFailsClosedOnMissingMetric(t *testing.T) {
	th := map[string]float64{MetricLines: 100, MetricFunctions: 80}
	assert.Empty(t, belowThreshold(Coverage{MetricLines: 100, MetricFunctions: 80}, th))
	assert.Equal(t, []string{"lines coverage 92% below threshold 100%"}, belowThreshold(Coverage{MetricLines: 92, MetricFunctions: 90}, th))
	assert.Equal(t, []string{"functions coverage missing from report (threshold 80%)"}, belowThreshold(Coverage{MetricLines: 100}, th))
}

func TestParseCoverageUnknownFormat(t *testing.T) {
	_, err := ParseCoverage("cobertura", nil)
	assert.Error(t, err)
}
