// Package report renders a sealed test run into human and CI readable
// artifacts inside the run directory.
package report

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/thruflo/sightline/internal/results"
)

// File names written by the renderers.
const (
	HTMLFile  = "report.html"
	JUnitFile = "junit.xml"
)

const isoLayout = "2006-01-02T15:04:05.000000"

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"iso":        func(t time.Time) string { return t.Format(isoLayout) },
	"statusCSS":  statusClass,
	"screenshot": filepath.Base,
}).Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Test Report: {{.Name}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #f4f4f4; padding: 10px; }
        .step { margin: 10px 0; padding: 10px; border: 1px solid #ddd; }
        .pass { background-color: #dff0d8; }
        .fail { background-color: #f2dede; }
        .running { background-color: #d9edf7; }
        img { max-width: 100%; border: 1px solid #ddd; margin-top: 10px; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Test Report: {{.Name}}</h1>
        <p>Status: <strong>{{.Status}}</strong></p>
        <p>Duration: {{printf "%.2f" .DurationSeconds}} seconds</p>
        <p>Start Time: {{iso .StartTime}}</p>
        <p>End Time: {{iso .EndTime}}</p>
    </div>

    <h2>Test Steps:</h2>
{{range .Steps}}
    <div class="step {{statusCSS .Status}}">
        <h3>Step {{.Step}}: {{.Description}}</h3>
        <p>Status: <strong>{{.Status}}</strong></p>
        <p>Time: {{iso .Timestamp}}</p>
{{- if .Screenshot}}
        <img src="{{screenshot .Screenshot}}" alt="Step {{.Step}} Screenshot">
{{- end}}
    </div>
{{end}}
</body>
</html>
`))

func statusClass(s results.Status) string {
	switch s {
	case results.StatusPass:
		return "pass"
	case results.StatusFail:
		return "fail"
	default:
		return "running"
	}
}

// Render writes the HTML report for run to w.
func Render(run *results.TestRun, w io.Writer) error {
	if err := htmlTemplate.Execute(w, run); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// HTML writes report.html into the run directory.
func HTML(run *results.TestRun) error {
	f, err := os.Create(filepath.Join(run.Dir, HTMLFile))
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := Render(run, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// HTMLRenderer returns the HTML report as a results.Renderer.
func HTMLRenderer() results.Renderer {
	return results.RendererFunc(HTML)
}

// JUnitRenderer returns the JUnit report as a results.Renderer.
func JUnitRenderer() results.Renderer {
	return results.RendererFunc(JUnit)
}

// Renderers returns the renderers enabled by the reports config.
func Renderers(junit bool) []results.Renderer {
	out := []results.Renderer{HTMLRenderer()}
	if junit {
		out = append(out, JUnitRenderer())
	}
	return out
}
