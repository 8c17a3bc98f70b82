// Package output formats a completed run's packs and health metrics for
// presentation. Per spec §1 Non-goals, only a JSON formatter is
// implemented; HTML/Markdown/CSV/SonarQube renderers are explicitly out
// of scope and are not stubbed.
package output

import (
	"encoding/json"
	"io"

	"github.com/sibyllinesoft/valknut/internal/gate"
	"github.com/sibyllinesoft/valknut/internal/pack"
)

// Report is the full serializable result of one analysis run.
type Report struct {
	Packs []pack.Pack `json:"packs"`
	Gate  gate.Report `json:"gate"`
}

// Formatter renders a Report to a writer in some output format.
type Formatter interface {
	Format(w io.Writer, report Report) error
}

// JSONFormatter renders a Report as indented JSON.
type JSONFormatter struct{}

func (JSONFormatter) Format(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
