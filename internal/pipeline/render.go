package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/entail/internal/model"
)

// Renderer writes evaluation results
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a new renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the result as indented JSON
func (r *Renderer) RenderJSON(result *model.Result, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RenderMarkdown writes the Markdown summary
func (r *Renderer) RenderMarkdown(result *model.Result, path string) error {
	if err := os.WriteFile(path, []byte(r.Markdown(result)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Markdown formats a result for human review
func (r *Renderer) Markdown(result *model.Result) string {
	var b strings.Builder
	t := result.Telemetry

	fmt.Fprintf(&b, "# Evidence Report\n\n")
	fmt.Fprintf(&b, "**Query:** %s\n\n", result.Query)
	fmt.Fprintf(&b, "- Run: `%s`\n", result.RunID)
	fmt.Fprintf(&b, "- Generated: %s\n", result.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if len(result.Anchors) > 0 {
		fmt.Fprintf(&b, "- Anchors: %s\n", strings.Join(result.Anchors, ", "))
	}
	if result.Degraded {
		fmt.Fprintf(&b, "- **Degraded:** %d claim(s) fell back to deterministic scores\n", t.DegradedClaims)
	}
	b.WriteString("\n## Claims\n\n")
	b.WriteString("| Claim | Tier | Rule | Supported | Confidence | Evidence |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, c := range result.Claims {
		status := "yes"
		if c.Binding.Dropped {
			status = "**dropped**"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %.2f | %s |\n",
			escapeCell(c.Claim.Text), c.Tier, c.Rule, status, c.Binding.Confidence,
			strings.Join(c.Binding.BoundSentenceIDs, ", "))
	}

	for _, c := range result.Claims {
		if len(c.Evidence) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n\n> %s\n\n", c.Claim.ID, c.Claim.Text)
		bound := make(map[string]bool, len(c.Binding.BoundSentenceIDs))
		for _, id := range c.Binding.BoundSentenceIDs {
			bound[id] = true
		}
		for _, e := range c.Evidence {
			marker := " "
			if bound[e.ID] {
				marker = "x"
			}
			fmt.Fprintf(&b, "- [%s] `%s` (final %.3f, jaccard %.2f, overlap %.2f", marker, e.ID, e.Final, e.Signals.Jaccard, e.Signals.Overlap)
			if e.Signals.HasCosine {
				fmt.Fprintf(&b, ", cosine %.2f", e.Signals.Cosine)
			}
			fmt.Fprintf(&b, ") %s\n", e.Text)
		}
		if c.Error != "" {
			fmt.Fprintf(&b, "\n_Judge stage skipped: %s_\n", c.Error)
		}
	}

	b.WriteString("\n## Telemetry\n\n")
	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Claims | %d |\n", t.Claims)
	fmt.Fprintf(&b, "| Risky pass rate | %.1f%% |\n", t.RiskyPassRate*100)
	fmt.Fprintf(&b, "| Reranked | %.1f%% |\n", t.PctReranker*100)
	fmt.Fprintf(&b, "| Entailment checked | %.1f%% |\n", t.PctEntailment*100)
	fmt.Fprintf(&b, "| Unsupported | %.1f%% |\n", t.PctUnsupported*100)
	fmt.Fprintf(&b, "| Fusion gain | %.2f |\n", t.FusionGain)
	fmt.Fprintf(&b, "| Anchor coverage | %.2f |\n", t.AnchorCoverage)
	fmt.Fprintf(&b, "| External calls | %d |\n", t.ExternalCalls)
	fmt.Fprintf(&b, "| Cache hits | %d |\n", t.CacheHits)

	if r.includeFooter {
		b.WriteString("\n---\n\n")
		b.WriteString("_Support decisions are statistical. A dropped claim lacks bound evidence in the retrieved pool; it is not shown to be false._\n")
	}
	return b.String()
}

// RenderSummary prints a short per-claim summary
func (r *Renderer) RenderSummary(w io.Writer, result *model.Result) {
	fmt.Fprintf(w, "\n")
	for _, c := range result.Claims {
		mark := "✓"
		if c.Binding.Dropped {
			mark = "✗"
		}
		suffix := ""
		if c.Degraded {
			suffix = " (degraded)"
		}
		fmt.Fprintf(w, "%s [%s] %s  conf=%.2f tier=%s%s\n", mark, c.Claim.ID, truncate(c.Claim.Text, 70), c.Binding.Confidence, c.Tier, suffix)
	}
	t := result.Telemetry
	fmt.Fprintf(w, "\n%d claims, %.0f%% unsupported, %d external calls, %d cache hits\n",
		t.Claims, t.PctUnsupported*100, t.ExternalCalls, t.CacheHits)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", "\\|"), "\n", " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
