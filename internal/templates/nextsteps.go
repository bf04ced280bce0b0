// Package templates renders the messages printed after a project is
// generated.
package templates

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// DefaultNextSteps is used unless a custom template is configured.
const DefaultNextSteps = `
{{- $type := index .Answers "type" | default "" -}}
{{- if .Extracted -}}
Project {{ index .Answers "name" | default (base .Path) }} is ready in {{ .Path }}
{{- with index .Answers "dependencies" }}
Dependencies: {{ splitList "," . | join ", " }}
{{- end }}

Next steps:
  cd {{ .Path }}
{{- if contains "gradle" $type }}
  ./gradlew bootRun
{{- else if contains "maven" $type }}
  ./mvnw spring-boot:run
{{- end }}
{{- if .HelpAvailable }}
  cat HELP.md
{{- end }}
{{- if not .Git }}
  git init
{{- end }}
{{- else -}}
Saved {{ .Path }}
{{- if hasSuffix ".zip" .Path }}
Unzip it to start working on {{ index .Answers "name" | default "your project" }}.
{{- end }}
{{- end }}
`

// NextStepsData is the input of the next steps template.
type NextStepsData struct {
	Path          string
	Extracted     bool
	Git           bool // a repository was already created
	HelpAvailable bool
	Answers       map[string]string
}

// RenderNextSteps renders DefaultNextSteps.
func RenderNextSteps(data NextStepsData) (string, error) {
	return Render(DefaultNextSteps, data)
}

// Render executes text with the sprig function map.
func Render(text string, data NextStepsData) (string, error) {
	if data.Answers == nil {
		data.Answers = map[string]string{}
	}

	tmpl, err := template.New("next-steps").Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return "", fmt.Errorf("invalid next steps template: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render next steps: %w", err)
	}
	return strings.TrimSpace(buf.String()) + "\n", nil
}
