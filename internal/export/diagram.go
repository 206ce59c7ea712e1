package export

import (
	"github.com/KaramelBytes/hydrochem-cli/internal/diagram"
	"github.com/KaramelBytes/hydrochem-cli/internal/diag"
)

// DiagramReport bundles every projection of one wide table.
type DiagramReport struct {
	Source      string               `json:"source,omitempty"`
	Filter      string               `json:"filter,omitempty"`
	Records     int                  `json:"records"`
	Piper       *diagram.PiperResult `json:"piper,omitempty"`
	Stiff       *diagram.StiffResult `json:"stiff,omitempty"`
	Ratios      []diagram.RatioSet   `json:"ratios,omitempty"`
	Diagnostics []diag.Diagnostic    `json:"diagnostics,omitempty"`
}
