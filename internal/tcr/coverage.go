package tcr

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"stageline/internal/config"
)

const (
	MetricLines     = "lines"
	MetricFunctions = "functions"
)

// Coverage maps a metric name to a percentage in 0..100.
type Coverage map[string]float64

// ParseCoverage decodes a report in the given format.
func ParseCoverage(format string, data []byte) (Coverage, error) {
	switch format {
	case config.CoverageIstanbul:
		return ParseIstanbul(data)
	case config.CoverageLCOV:
		return ParseLCOV(data)
	}
	return nil, fmt.Errorf("unknown coverage format %q", format)
}

type istanbulMetric struct {
	Total int             `json:"total"`
	Pct   json.RawMessage `json:"pct"`
}

// ParseIstanbul reads the "total" block of an istanbul json-summary report.
func ParseIstanbul(data []byte) (Coverage, error) {
	var summary struct {
		Total map[string]istanbulMetric `json:"total"`
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("parse istanbul summary: %w", err)
	}
	if summary.Total == nil {
		return nil, fmt.Errorf("parse istanbul summary: missing total")
	}
	cov := Coverage{}
	for _, metric := range []string{MetricLines, MetricFunctions} {
		m, ok := summary.Total[metric]
		if !ok {
			continue
		}
		var pct float64
		if err := json.Unmarshal(m.Pct, &pct); err != nil {
			// istanbul reports "Unknown" when there is nothing to cover
			if m.Total == 0 {
				pct = 100
			} else {
				return nil, fmt.Errorf("parse istanbul summary: %s pct: %w", metric, err)
			}
		}
		cov[metric] = pct
	}
	return cov, nil
}

// ParseLCOV aggregates LF/LH and FNF/FNH records across all files of an lcov tracefile.
func ParseLCOV(data []byte) (Coverage, error) {
	var (
		lf, lh, fnf, fnh int
		sawLines, sawFns bool
	)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		key, val, ok := strings.Cut(strings.TrimSpace(sc.Text()), ":")
		if !ok {
			continue
		}
		var dst *int
		switch key {
		case "LF":
			dst, sawLines = &lf, true
		case "LH":
			dst = &lh
		case "FNF":
			dst, sawFns = &fnf, true
		case "FNH":
			dst = &fnh
		default:
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return nil, fmt.Errorf("parse lcov %s: %w", key, err)
		}
		*dst += n
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read lcov: %w", err)
	}
	cov := Coverage{}
	if sawLines {
		cov[MetricLines] = percent(lh, lf)
	}
	if sawFns {
		cov[MetricFunctions] = percent(fnh, fnf)
	}
	return cov, nil
}

func percent(hit, found int) float64 {
	if found == 0 {
		return 100
	}
	return float64(hit) * 100 / float64(found)
}

// belowThreshold lists every metric under its threshold. A metric absent from the report fails.
func belowThreshold(cov Coverage, thresholds map[string]float64) []string {
	var failures []string
	for _, metric := range []string{MetricLines, MetricFunctions} {
		want, ok := thresholds[metric]
		if !ok {
			continue
		}
		got, ok := cov[metric]
		if !ok {
			failures = append(failures, fmt.Sprintf("%s coverage missing from report (threshold %s%%)", metric, formatPct(want)))
			continue
		}
		if got < want {
			failures = append(failures, fmt.Sprintf("%s coverage %s%% below threshold %s%%", metric, formatPct(got), formatPct(want)))
		}
	}
	return failures
}

func formatPct(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
