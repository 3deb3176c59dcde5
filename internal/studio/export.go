package studio

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/charmbracelet/log"

	studiosdk "scriptstudio/sdk/go"
)

// ExportFormat selects how an artifact leaves the studio.
type ExportFormat string

const (
	// FormatDocument asks the backend to render the print payload.
	FormatDocument ExportFormat = "DOCUMENT"
	// FormatMarkup renders a standalone HTML page locally.
	FormatMarkup ExportFormat = "MARKUP"
)

// ExportResult is a finished export: the bytes plus the filename the
// user should save them under.
type ExportResult struct {
	Filename string
	Data     []byte
}

// ArtifactLookup resolves a selected artifact id to its full record and
// owning order from data the client already holds.
type ArtifactLookup func(id string) (studiosdk.Order, studiosdk.Artifact, bool)

// Exporter turns the current artifact selection into a file. Document
// exports round-trip through the backend; markup exports render locally.
type Exporter struct {
	Gateway Gateway
	View    *ViewSwitcher
	Lookup  ArtifactLookup
	Logger  *log.Logger
}

func NewExporter(gw Gateway, view *ViewSwitcher, lookup ArtifactLookup, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.Default()
	}
	return &Exporter{Gateway: gw, View: view, Lookup: lookup, Logger: logger}
}

// Export produces the selected artifact in the requested format.
func (e *Exporter) Export(ctx context.Context, format ExportFormat) (ExportResult, error) {
	id, err := e.View.SelectedArtifact()
	if err != nil {
		return ExportResult{}, err
	}
	switch format {
	case FormatDocument:
		data, filename, err := e.Gateway.RenderDocument(ctx, id)
		if err != nil {
			return ExportResult{}, err
		}
		if filename == "" {
			filename = id + ".pdf"
		}
		e.Logger.Info("document exported", "artifact", id, "file", filename)
		return ExportResult{Filename: filename, Data: data}, nil
	case FormatMarkup:
		order, artifact, ok := e.Lookup(id)
		if !ok {
			return ExportResult{}, NotFoundError{Kind: "artifact", ID: id}
		}
		data, err := RenderMarkup(order, artifact)
		if err != nil {
			return ExportResult{}, err
		}
		filename := fmt.Sprintf("%s_%s.html", order.ID, artifact.Kind)
		e.Logger.Info("markup exported", "artifact", id, "file", filename)
		return ExportResult{Filename: filename, Data: data}, nil
	default:
		return ExportResult{}, fmt.Errorf("unknown export format %q", format)
	}
}

var markupTemplate = template.Must(template.New("markup").Parse(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <title>{{.Artifact.Title}}</title>
  <style>
    body { font-family: system-ui, sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; }
    .badge { display: inline-block; padding: 2px 10px; border-radius: 10px; font-size: 0.8em; color: #fff; background: {{.BadgeColor}}; }
    .meta { color: #666; font-size: 0.9em; }
    pre { white-space: pre-wrap; line-height: 1.6; font-family: inherit; }
  </style>
</head>
<body>
  <h1>{{.Artifact.Title}}</h1>
  <p class="meta">{{.Order.ID}} &middot; {{.Order.Title}} <span class="badge">{{.Artifact.Quality}}</span></p>
  <pre>{{.Artifact.Body}}</pre>
</body>
</html>
`))

// RenderMarkup produces the standalone HTML page for an artifact.
func RenderMarkup(o studiosdk.Order, a studiosdk.Artifact) ([]byte, error) {
	color := "#8b5a2b"
	switch a.Quality {
	case "gold":
		color = "#b8860b"
	case "silver":
		color = "#708090"
	}
	var buf bytes.Buffer
	err := markupTemplate.Execute(&buf, map[string]any{
		"Order":      o,
		"Artifact":   a,
		"BadgeColor": color,
	})
	if err != nil {
		return nil, fmt.Errorf("render markup: %w", err)
	}
	return buf.Bytes(), nil
}
