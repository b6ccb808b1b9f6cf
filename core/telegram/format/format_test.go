package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestEscape(t *testing.T) {
	assert.Equal(t, "a &lt;b&gt; &amp; c", Escape("a <b> & c", tele.ModeHTML))
	assert.Equal(t, `snake\_case \*bold\*`, Escape("snake_case *bold*", tele.ModeMarkdown))
	assert.Equal(t, `1\.5 \(approx\)\!`, Escape("1.5 (approx)!", tele.ModeMarkdownV2))
	assert.Equal(t, "<b>", Escape("<b>", tele.ModeDefault))

	_, err := EscapeMarkdown("x", 3)
	assert.Error(t, err)
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Hello, <b>{{ .Name | escape }}</b>! You have {{ .Count }} items.",
		map[string]any{"Name": "<Ann>", "Count": 3}, tele.ModeHTML)
	require.NoError(t, err)
	assert.Equal(t, "Hello, <b>&lt;Ann&gt;</b>! You have 3 items.", out)

	out, err = RenderTemplate("{{ .Missing }}", map[string]any{}, tele.ModeHTML)
	require.NoError(t, err)
	assert.Equal(t, "<no value>", out)

	_, err = RenderTemplate("{{ .Broken", nil, tele.ModeHTML)
	assert.ErrorContains(t, err, "parse template")
}
