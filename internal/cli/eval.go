package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/entail/internal/model"
	"github.com/ppiankov/entail/internal/pipeline"
	"github.com/ppiankov/entail/internal/store"
)

var (
	outJSON       string
	outMD         string
	timeout       time.Duration
	noCache       bool
	noFooter      bool
	noRerank      bool
	noEntailment  bool
	judgeProvider string
	judgeModel    string
	embedder      string
	docsFile      string
)

// evalCmd represents the eval command
var evalCmd = &cobra.Command{
	Use:   "eval <request.json|request.yaml>",
	Short: "Evaluate the claims of one draft answer against its retrieved chunks",
	Long: `Eval reads one request (query, draft answer or claims, and the vector and
optional lexical rankings) and:
- Fuses the rankings into one candidate pool
- Scores every candidate sentence against every claim
- Keeps a risk-dependent amount of evidence per claim
- Validates support and binds each claim to its evidence
- Soft-drops claims without enough agreeing evidence

Example:
  entail eval request.json
  entail eval request.yaml --json result.json --md result.md
  entail eval request.json --judge-provider openai --judge-model gpt-4o-mini
  entail eval request.json --docs chunks.json --no-rerank`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)

	// Output flags
	evalCmd.Flags().StringVar(&outJSON, "json", "result.json", "output JSON path")
	evalCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	evalCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")

	evalCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall evaluation timeout")
	evalCmd.Flags().StringVar(&docsFile, "docs", "", "chunk/document store used to fill chunks given by id only")
	addEngineFlags(evalCmd)
}

// addEngineFlags registers the flags shared by eval and batch
func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the inference cache")
	cmd.Flags().BoolVar(&noRerank, "no-rerank", false, "disable the LLM reranker")
	cmd.Flags().BoolVar(&noEntailment, "no-entailment", false, "disable the entailment gate")
	cmd.Flags().StringVar(&judgeProvider, "judge-provider", "", "LLM judge provider (openai, anthropic, ollama)")
	cmd.Flags().StringVar(&judgeModel, "judge-model", "", "LLM judge model name")
	cmd.Flags().StringVar(&embedder, "embedder", "", "embedding provider (hash, openai, ollama, none)")
}

// buildConfig layers CLI flags and provider credentials over the loaded config
func buildConfig(cmd *cobra.Command) (*model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("no-cache") {
		cfg.Cache.Enabled = !noCache
	}
	if flags.Changed("no-rerank") {
		cfg.Rerank.Enabled = !noRerank
	}
	if flags.Changed("no-entailment") {
		cfg.Rerank.EntailmentEnabled = !noEntailment
	}
	if flags.Changed("no-footer") {
		cfg.Output.IncludeFooter = !noFooter
	}
	if judgeProvider != "" {
		cfg.LLM.Provider = judgeProvider
	}
	if judgeModel != "" {
		cfg.LLM.Model = judgeModel
	}
	if embedder != "" {
		cfg.Embedding.Provider = embedder
	}
	cfg.Output.Verbose = verbose

	// Get API keys from environment
	switch cfg.LLM.Provider {
	case "openai":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = baseURL
		}
	}

	switch cfg.Embedding.Provider {
	case "openai":
		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && cfg.Embedding.BaseURL == "" {
			cfg.Embedding.BaseURL = baseURL
		}
	}

	return cfg, nil
}

func runEval(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Request: %s\n", path)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", timeout)
		fmt.Fprintf(os.Stderr, "Cache: %v\n", cfg.Cache.Enabled)
		if cfg.LLM.Provider != "" {
			fmt.Fprintf(os.Stderr, "Judge: %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
		}
		fmt.Fprintln(os.Stderr)
	}

	req, err := pipeline.LoadRequest(path)
	if err != nil {
		return err
	}

	var opts []pipeline.Option
	if docsFile != "" {
		docs, err := store.LoadFile(docsFile)
		if err != nil {
			return fmt.Errorf("load docs: %w", err)
		}
		opts = append(opts, pipeline.WithStore(docs))
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Loaded %d stored chunks\n", docs.Len())
		}
	}

	engine, err := pipeline.New(cfg, opts...)
	if err != nil {
		return err
	}

	result, err := engine.Evaluate(ctx, req)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Evaluated %d claims\n", len(result.Claims))
		fmt.Fprintf(os.Stderr, "✓ Fusion gain %.2f, anchor coverage %.2f\n", result.Telemetry.FusionGain, result.Telemetry.AnchorCoverage)
		if result.Degraded {
			fmt.Fprintf(os.Stderr, "⚠️  %d claim(s) degraded, judge breaker %s\n", result.Telemetry.DegradedClaims, engine.Orchestrator().BreakerState())
		}
	}

	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter)
	if err := renderer.RenderJSON(result, outJSON); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(result, outMD); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
	}
	renderer.RenderSummary(os.Stderr, result)

	return nil
}
