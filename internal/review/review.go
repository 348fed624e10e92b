// Package review locates and writes the review section of a spec body.
//
// A review section is a level-two markdown heading named "Review", optionally
// followed by a parenthesized note such as "(round 2)", then a
// "Verdict: <VALUE>" line and free-form notes, up to the next heading of level two
// or higher.
package review

import (
	"fmt"
	"strconv"
	"strings"

	"stageline/internal/domain"
)

type Verdict string

const (
	Approved  Verdict = "APPROVED"
	NeedsWork Verdict = "NEEDS_WORK"
)

// ParseVerdict validates a verdict given by a caller.
func ParseVerdict(s string) (Verdict, error) {
	switch Verdict(s) {
	case Approved, NeedsWork:
		return Verdict(s), nil
	}
	return "", domain.UsageError{Msg: fmt.Sprintf("invalid verdict %q (valid: APPROVED, NEEDS_WORK)", s)}
}

// Section is the parsed review section. Verdict holds the literal text found, so
// unknown or differently cased values never match a known verdict.
type Section struct {
	Present bool
	Verdict string
	Round   int
	Notes   string
}

// Is reports whether the section exists and carries exactly v.
func (s Section) Is(v Verdict) bool {
	return s.Present && s.Verdict == string(v)
}

const heading = "## Review"

// Parse extracts the review section from body. A body without one yields a zero Section.
func Parse(body string) Section {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	start, end := locate(lines)
	if start < 0 {
		return Section{}
	}
	sec := Section{Present: true}
	var notes []string
	for _, line := range lines[start+1 : end] {
		key, val, ok := field(line)
		switch {
		case ok && key == "verdict" && sec.Verdict == "":
			sec.Verdict = val
		case ok && key == "round" && sec.Round == 0:
			if n, err := strconv.Atoi(val); err == nil {
				sec.Round = n
			}
		default:
			notes = append(notes, line)
		}
	}
	sec.Notes = strings.TrimSpace(strings.Join(notes, "\n"))
	return sec
}

// Render formats a review section.
func Render(v Verdict, round int, notes string) string {
	var b strings.Builder
	b.WriteString(heading + "\n\n")
	fmt.Fprintf(&b, "Verdict: %s\n", v)
	fmt.Fprintf(&b, "Round: %d\n", round)
	if n := strings.TrimSpace(notes); n != "" {
		b.WriteString("\n" + n + "\n")
	}
	return b.String()
}

// Replace swaps the existing review section of body for section, or appends it.
func Replace(body, section string) string {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	start, end := locate(lines)
	section = strings.TrimRight(section, "\n")
	if start < 0 {
		trimmed := strings.TrimRight(body, "\n")
		if trimmed == "" {
			return section + "\n"
		}
		return trimmed + "\n\n" + section + "\n"
	}
	before := strings.TrimRight(strings.Join(lines[:start], "\n"), "\n")
	after := strings.TrimLeft(strings.Join(lines[end:], "\n"), "\n")
	var out strings.Builder
	if before != "" {
		out.WriteString(before + "\n\n")
	}
	out.WriteString(section + "\n")
	if after != "" {
		out.WriteString("\n" + after)
	}
	return out.String()
}

// locate returns the heading line index and the exclusive end of the section, or -1.
func locate(lines []string) (int, int) {
	start := -1
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if start < 0 {
			if isHeading(t) {
				start = i
			}
			continue
		}
		if strings.HasPrefix(t, "# ") || strings.HasPrefix(t, "## ") {
			return start, i
		}
	}
	return start, len(lines)
}

func isHeading(line string) bool {
	if len(line) < len(heading) || !strings.EqualFold(line[:len(heading)], heading) {
		return false
	}
	rest := strings.TrimSpace(line[len(heading):])
	return rest == "" || (line[len(heading)] == ' ' && strings.HasPrefix(rest, "(") && strings.HasSuffix(rest, ")"))
}

// field parses "Key: value" lines, ignoring bold and code markers around either side.
func field(line string) (string, string, bool) {
	clean := strings.NewReplacer("*", "", "`", "").Replace(strings.TrimSpace(line))
	clean = strings.TrimPrefix(clean, "- ")
	key, val, ok := strings.Cut(clean, ":")
	if !ok {
		return "", "", false
	}
	return strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(val), true
}
