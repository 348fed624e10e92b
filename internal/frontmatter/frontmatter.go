// Package frontmatter reads and writes documents made of a `---` fenced YAML
// header followed by free-form markdown.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrMissing   = errors.New("frontmatter: missing header")
	ErrMalformed = errors.New("frontmatter: malformed header")
)

// Parse splits content into its key->value header and body. Scalar values of any
// YAML type are kept as their literal text.
func Parse(content []byte) (map[string]string, string, error) {
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return nil, "", ErrMissing
	}
	rest := normalized[4:]
	var header, body []byte
	if bytes.HasPrefix(rest, []byte("---\n")) {
		body = rest[4:]
	} else {
		parts := bytes.SplitN(rest, []byte("\n---\n"), 2)
		if len(parts) < 2 {
			if !bytes.HasSuffix(rest, []byte("\n---")) {
				return nil, "", ErrMalformed
			}
			parts = [][]byte{bytes.TrimSuffix(rest, []byte("\n---")), nil}
		}
		header, body = parts[0], parts[1]
	}

	meta := map[string]string{}
	if len(bytes.TrimSpace(header)) > 0 {
		var doc yaml.Node
		if err := yaml.Unmarshal(header, &doc); err != nil {
			return nil, "", fmt.Errorf("frontmatter: parse header: %w", err)
		}
		if len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
			return nil, "", ErrMalformed
		}
		m := doc.Content[0]
		for i := 0; i+1 < len(m.Content); i += 2 {
			k, v := m.Content[i], m.Content[i+1]
			if v.Kind != yaml.ScalarNode {
				return nil, "", fmt.Errorf("%w: key %q is not a scalar", ErrMalformed, k.Value)
			}
			meta[k.Value] = v.Value
		}
	}
	return meta, strings.TrimLeft(string(body), "\n"), nil
}

// Render writes meta as a fenced header followed by body. Keys listed in order come
// first, the rest follow alphabetically.
func Render(meta map[string]string, order []string, body string) ([]byte, error) {
	m := &yaml.Node{Kind: yaml.MappingNode}
	seen := map[string]bool{}
	add := func(k string) {
		v, ok := meta[k]
		if !ok || seen[k] {
			return
		}
		seen[k] = true
		m.Content = append(m.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Value: v})
	}
	for _, k := range order {
		add(k)
	}
	rest := make([]string, 0, len(meta))
	for k := range meta {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		add(k)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	if len(m.Content) > 0 {
		data, err := yaml.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("frontmatter: encode header: %w", err)
		}
		buf.Write(bytes.TrimRight(data, "\n"))
		buf.WriteString("\n")
	}
	buf.WriteString("---\n\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}
