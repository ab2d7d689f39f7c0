package format

import (
	"bytes"
	"html/template"
	"strings"
)

var linesTemplate = template.Must(template.New("lines").Parse(
	`{{range .}}<div class="detail-line depth-{{.Depth}}">{{.String}}</div>{{end}}`))

// HTML renders lines as escaped markup.
func HTML(lines []Line) (template.HTML, error) {
	var buf bytes.Buffer
	if err := linesTemplate.Execute(&buf, lines); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// Text renders lines for a terminal, two spaces per depth level.
func Text(lines []Line, indent string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(indent)
		b.WriteString(strings.Repeat("  ", l.Depth))
		b.WriteString(l.String())
		b.WriteByte('\n')
	}
	return b.String()
}
