package format

import (
	"fmt"
	"strings"
	"sync"
	"text/template"

	tele "gopkg.in/telebot.v4"
)

var templates sync.Map // source + mode -> *template.Template

// RenderTemplate executes a text/template description. The "escape"
// function escapes values for mode, e.g. {{ .Name | escape }}.
func RenderTemplate(src string, data any, mode tele.ParseMode) (string, error) {
	t, err := parse(src, mode)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("format: execute template: %w", err)
	}
	return b.String(), nil
}

func parse(src string, mode tele.ParseMode) (*template.Template, error) {
	key := string(mode) + "\x00" + src
	if t, ok := templates.Load(key); ok {
		return t.(*template.Template), nil
	}
	t, err := template.New("description").
		Option("missingkey=zero").
		Funcs(template.FuncMap{
			"escape": func(v any) string { return Escape(fmt.Sprint(v), mode) },
		}).
		Parse(src)
	if err != nil {
		return nil, fmt.Errorf("format: parse template: %w", err)
	}
	actual, _ := templates.LoadOrStore(key, t)
	return actual.(*template.Template), nil
}
