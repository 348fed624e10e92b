package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaderAndBody(t *testing.T) {
	doc := "---\nname: foo\ntype: feature\ncreated: 2024-01-01\npriority: 3\n---\n\n# Foo\n\nScenario: works\n"
	meta, body, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "foo", meta["name"])
	assert.Equal(t, "feature", meta["type"])
	assert.Equal(t, "2024-01-01", meta["created"])
	assert.Equal(t, "3", meta["priority"])
	assert.Equal(t, "# Foo\n\nScenario: works\n", body)
}

func TestParseCRLF(t *testing.T) {
	meta, body, err := Parse([]byte("---\r\nname: foo\r\n---\r\nbody\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "foo", meta["name"])
	assert.Equal(t, "body\n", body)
}

func TestParseEmptyHeader(t *testing.T) {
	meta, body, err := Parse([]byte("---\n---\ntext"))
	require.NoError(t, err)
	assert.Empty(t, meta)
	assert.Equal(t, "text", body)
}

func TestParseErrors(t *testing.T) {
	_, _, err := Parse([]byte("# no header"))
	assert.ErrorIs(t, err, ErrMissing)

	_, _, err = Parse([]byte("---\nname: foo\nno closing fence"))
	assert.ErrorIs(t, err, ErrMalformed)

	_, _, err = Parse([]byte("---\ntags: [a, b]\n---\n"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestRenderOrdersKeys(t *testing.T) {
	out, err := Render(map[string]string{
		"zeta":  "z",
		"title": "Add login",
		"name":  "login",
		"alpha": "a",
	}, []string{"name", "title"}, "Body\n")
	require.NoError(t, err)
	assert.Equal(t, "---\nname: login\ntitle: Add login\nalpha: a\nzeta: z\n---\n\nBody\n", string(out))
}

func TestRenderParseRoundTripKeepsValuesAsText(t *testing.T) {
	meta := map[string]string{"name": "x", "created": "2024-02-03", "count": "10", "flag": "true"}
	out, err := Render(meta, nil, "hello")
	require.NoError(t, err)
	got, body, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, meta, got)
	assert.Equal(t, "hello", body)
}
