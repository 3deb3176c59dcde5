package server

import (
	"bytes"
	"fmt"
	"html/template"

	"scriptstudio/internal/domain"
)

// documentTemplate is the print layout sent to the PDF pipeline. The
// quality badge color mirrors the tier metal.
var documentTemplate = template.Must(template.New("document").Parse(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <title>{{.Order.ID}} {{.Artifact.Kind}}</title>
  <style>
    body { font-family: Georgia, serif; margin: 2.5cm; color: #1a1a1a; }
    header { border-bottom: 2px solid #333; padding-bottom: 0.5em; margin-bottom: 1.5em; }
    h1 { font-size: 1.4em; margin: 0; }
    .meta { color: #666; font-size: 0.85em; margin-top: 0.3em; }
    .badge { display: inline-block; padding: 2px 10px; border-radius: 10px; font-size: 0.8em; color: #fff; background: {{.BadgeColor}}; }
    .content { white-space: pre-wrap; line-height: 1.6; }
    footer { margin-top: 3em; border-top: 1px solid #ccc; padding-top: 0.5em; color: #888; font-size: 0.75em; }
  </style>
</head>
<body>
  <header>
    <h1>{{.Artifact.Title}}</h1>
    <div class="meta">
      {{.Order.ID}} &middot; {{.Order.Title}} &middot; {{.Artifact.Week}}
      <span class="badge">{{.Artifact.Quality}}</span>
    </div>
  </header>
  <div class="content">{{.Artifact.Body}}</div>
  <footer>{{.StudioName}}</footer>
</body>
</html>
`))

func badgeColor(q domain.QualityTier) string {
	switch q {
	case domain.TierGold:
		return "#b8860b"
	case domain.TierSilver:
		return "#708090"
	default:
		return "#8b5a2b"
	}
}

// renderDocument produces the print-ready payload for an artifact.
func renderDocument(studioName string, o domain.Order, a domain.Artifact) ([]byte, error) {
	var buf bytes.Buffer
	err := documentTemplate.Execute(&buf, map[string]any{
		"Order":      o,
		"Artifact":   a,
		"BadgeColor": badgeColor(a.Quality),
		"StudioName": studioName,
	})
	if err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	return buf.Bytes(), nil
}

// documentFilename names a rendered export after its order and kind.
func documentFilename(o domain.Order, a domain.Artifact) string {
	return fmt.Sprintf("%s_%s.pdf", o.ID, a.Kind)
}
