package pipeline

import (
	"github.com/ppiankov/entail/internal/fusion"
	"github.com/ppiankov/entail/internal/inference"
	"github.com/ppiankov/entail/internal/model"
)

func buildTelemetry(claims []model.ClaimResult, pool fusion.Pool, usage *inference.Usage) model.Telemetry {
	t := model.Telemetry{
		Claims:         len(claims),
		FusionGain:     pool.FusionGain,
		AnchorCoverage: pool.AnchorCoverage,
		ExternalCalls:  usage.ExternalCalls(),
		CacheHits:      usage.CacheHits(),
	}

	riskySupported, reranked, checked, dropped := 0, 0, 0, 0
	for _, c := range claims {
		if c.Risky {
			t.RiskyClaims++
			if c.Supported {
				riskySupported++
			}
		}
		if c.Reranked {
			reranked++
		}
		if c.EntailmentChecked {
			checked++
		}
		if c.Binding.Dropped {
			dropped++
		}
		if c.Degraded {
			t.DegradedClaims++
		}
	}

	t.RiskyPassRate = ratio(riskySupported, t.RiskyClaims)
	t.PctReranker = ratio(reranked, len(claims))
	t.PctEntailment = ratio(checked, len(claims))
	t.PctUnsupported = ratio(dropped, len(claims))
	return t
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
