// Package report summarizes a fitted causal model as a human-readable
// evaluation: the mechanism assigned per node, its cross-validated error and
// noise spread, and the falsification verdict when available.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"gonum.org/v1/gonum/stat"

	"gocause/internal/falsify"
	"gocause/internal/mechanism"
	"gocause/internal/scm"
)

// NodeSummary is the per-node slice of the evaluation.
type NodeSummary struct {
	Node     string  `json:"node"`
	Parents  int     `json:"parents"`
	Family   string  `json:"family"`
	CVError  float64 `json:"cv_error"`
	NoiseStd float64 `json:"noise_std"`
}

// Evaluation is the full model evaluation.
type Evaluation struct {
	ModelKind     string           `json:"model_kind"`
	Nodes         []NodeSummary    `json:"nodes"`
	Falsification *falsify.Outcome `json:"falsification,omitempty"`
}

// Summarize inspects every node model of a fitted SCM. The falsification
// outcome is optional and appended when the caller ran the check.
func Summarize(m *scm.SCM, outcome *falsify.Outcome) *Evaluation {
	eval := &Evaluation{ModelKind: string(m.Kind()), Falsification: outcome}
	for _, node := range m.Order() {
		nm, _ := m.Node(node)
		summary := NodeSummary{
			Node:     node,
			Parents:  len(m.Graph().Parents(node)),
			Family:   nm.Mech.Family(),
			CVError:  nm.CVError,
			NoiseStd: math.NaN(),
		}
		if sampler, ok := nm.Mech.(mechanism.NoiseSampler); ok {
			if samples := sampler.NoiseSamples(); len(samples) > 1 {
				summary.NoiseStd = stat.StdDev(samples, nil)
			}
		}
		eval.Nodes = append(eval.Nodes, summary)
	}
	return eval
}

// Markdown renders the evaluation as a markdown document.
func (e *Evaluation) Markdown() string {
	var b strings.Builder
	b.WriteString("# Causal model evaluation\n\n")
	fmt.Fprintf(&b, "Model kind: `%s`\n\n", e.ModelKind)

	b.WriteString("## Mechanisms\n\n")
	b.WriteString("| Node | Parents | Family | CV error | Noise std |\n")
	b.WriteString("| --- | ---: | --- | ---: | ---: |\n")
	for _, n := range e.Nodes {
		fmt.Fprintf(&b, "| %s | %d | %s | %s | %s |\n",
			n.Node, n.Parents, n.Family, formatMetric(n.CVError), formatMetric(n.NoiseStd))
	}

	if e.Falsification != nil {
		b.WriteString("\n## Falsification\n\n")
		fmt.Fprintf(&b, "- Falsifiable: %v\n", e.Falsification.Falsifiable)
		fmt.Fprintf(&b, "- Falsified: %v\n", e.Falsification.Falsified)
		fmt.Fprintf(&b, "- Constraints tested: %d, rejected: %d\n\n", e.Falsification.NumConstraints, e.Falsification.NumRejected)
		b.WriteString(e.Falsification.Explanation)
		b.WriteString("\n")
	}
	return b.String()
}

// HTML renders the markdown evaluation to HTML.
func (e *Evaluation) HTML() []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML([]byte(e.Markdown()), p, renderer)
}

func formatMetric(v float64) string {
	if math.IsNaN(v) {
		return "–"
	}
	return fmt.Sprintf("%.4f", v)
}
