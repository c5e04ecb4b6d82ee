package output

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func newTestRenderer(mode OutputMode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestMode(t *testing.T) {
	tests := []struct {
		in   string
		want OutputMode
	}{
		{"", ModeAuto},
		{"auto", ModeAuto},
		{"TEXT", ModeText},
		{"table", ModeText},
		{"md", ModeMarkdown},
		{"json", ModeJSON},
		{"csv", ModeCSV},
		{" yaml ", ModeYAML},
		{"xml", ModeAuto},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Mode(tt.in))
		})
	}

	assert.True(t, Valid("auto"))
	assert.True(t, Valid(""))
	assert.True(t, Valid("md"))
	assert.False(t, Valid("xml"))
}

func TestEffectiveMode(t *testing.T) {
	r, _, _ := newTestRenderer(ModeAuto, true)
	assert.Equal(t, ModeText, r.EffectiveMode())

	r, _, _ = newTestRenderer(ModeAuto, false)
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())

	r, _, _ = newTestRenderer(ModeJSON, true)
	assert.Equal(t, ModeJSON, r.EffectiveMode())
}

func TestTable(t *testing.T) {
	headers := []string{"Year", "Month", "Growth"}
	rows := [][]any{{2010, 3, 12.5}, {2010, 4, 13.25}}

	t.Run("markdown", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeMarkdown, false)
		r.Table(headers, rows)
		assert.Contains(t, out.String(), "| Year | Month | Growth |")
		assert.Contains(t, out.String(), "| 2010 | 3 | 12.5 |")
		assert.False(t, ansi.MatchString(out.String()))
	})

	t.Run("csv", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeCSV, false)
		r.Table(headers, rows)
		assert.Contains(t, out.String(), "Year,Month,Growth")
		assert.Contains(t, out.String(), "2010,4,13.25")
	})

	t.Run("text", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeText, false)
		r.Table(headers, rows)
		assert.Contains(t, out.String(), "YEAR")
		assert.Contains(t, out.String(), "13.25")
	})
}

func TestJSONAndYAML(t *testing.T) {
	r, out, _ := newTestRenderer(ModeJSON, false)
	require.NoError(t, r.JSON(map[string]any{"categories": []float64{5, 10}}))
	assert.JSONEq(t, `{"categories": [5, 10]}`, out.String())

	r, out, _ = newTestRenderer(ModeYAML, false)
	require.NoError(t, r.YAML(map[string]any{"ready": true}))
	assert.Equal(t, "ready: true\n", out.String())
}

func TestMessages(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeMarkdown, false)

	r.Header(1, "Categories")
	r.Success("dataset ready")
	r.Warning("careful")
	r.Error("broken")
	r.StatusLine("dataset.path", "error", "could not be found")

	assert.Contains(t, out.String(), "# Categories\n")
	assert.Contains(t, out.String(), "✓ dataset ready")
	assert.Contains(t, out.String(), "✗ dataset.path  could not be found")
	assert.Contains(t, errOut.String(), "! careful")
	assert.Contains(t, errOut.String(), "✗ broken")
	assert.False(t, ansi.MatchString(out.String()+errOut.String()), "non-TTY output must be plain")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "## Site", FormatHeader(2, "Site"))
	assert.Equal(t, "# Site", FormatHeader(0, "Site"))
	assert.Equal(t, "- **Region:** 3", FormatKeyValue("Region", 3))
}
