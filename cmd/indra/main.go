package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/riverlab/indra/internal/config"
	"github.com/riverlab/indra/internal/confluence"
	"github.com/riverlab/indra/internal/genai"
	"github.com/riverlab/indra/internal/handoff"
	"github.com/riverlab/indra/internal/intent"
	"github.com/riverlab/indra/internal/mcptools"
	"github.com/riverlab/indra/internal/panel"
	"github.com/riverlab/indra/internal/synth"
)

// CLI flags parsed from command line.
type cliFlags struct {
	Purpose   string
	ConfigDir string
	Prior     string
	Execute   bool
	Verbose   bool
	ServeMCP  bool
	Version   bool
}

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var flags cliFlags

	fs := flag.NewFlagSet("indra", flag.ContinueOnError)
	fs.StringVar(&flags.Purpose, "purpose", "", "natural-language modeling purpose to synthesize a configuration for")
	fs.StringVar(&flags.ConfigDir, "config", ".", "directory containing indra.yml")
	fs.StringVar(&flags.Prior, "prior", "", "existing CONFLUENCE YAML to seed the draft configuration from")
	fs.BoolVar(&flags.Execute, "execute", false, "run CONFLUENCE on the accepted configuration")
	fs.BoolVar(&flags.Verbose, "verbose", false, "enable verbose output")
	fs.BoolVar(&flags.ServeMCP, "serve-mcp", false, "run as MCP server over stdio")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Println(version)
		return nil
	}

	cfg, err := config.Load(flags.ConfigDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.Verbose {
		cfg.Verbose = true
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if cfg.APIKey == "" {
		return fmt.Errorf("no API key: set ANTHROPIC_API_KEY or apiKey in indra.yml")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coordinator, progress := buildCoordinator(cfg, log)

	if flags.ServeMCP {
		server := mcptools.NewIndraMCPServer(coordinator, confluence.DefaultConstraints())
		return mcptools.RunIndraMCPServerStdio(ctx, server)
	}

	if flags.Purpose == "" {
		fs.Usage()
		return fmt.Errorf("either -purpose or -serve-mcp is required")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range progress.Subscribe() {
			fmt.Println(synth.FormatEvent(ev))
		}
	}()

	var prior map[string]any
	if flags.Prior != "" {
		data, err := os.ReadFile(flags.Prior)
		if err != nil {
			return fmt.Errorf("read prior config: %w", err)
		}
		if err := yaml.Unmarshal(data, &prior); err != nil {
			return fmt.Errorf("parse prior config: %w", err)
		}
	}

	result := coordinator.RunWithPrior(ctx, flags.Purpose, prior)
	progress.Close()
	<-done

	return report(ctx, cfg, result, flags.Execute, log)
}

// buildCoordinator wires the panel, parser, and coordinator from
// project settings.
func buildCoordinator(cfg *config.ProjectConfig, log *slog.Logger) (*synth.Coordinator, *synth.ProgressReporter) {
	clientOpts := []genai.ClientOption{genai.WithLogger(log)}
	if cfg.Model != "" {
		clientOpts = append(clientOpts, genai.WithModel(cfg.Model))
	}
	if cfg.MaxTokens > 0 {
		clientOpts = append(clientOpts, genai.WithMaxTokens(cfg.MaxTokens))
	}
	if cfg.MaxRetries > 0 {
		clientOpts = append(clientOpts, genai.WithMaxRetries(cfg.MaxRetries))
	}
	if d := cfg.Backoff(); d > 0 {
		clientOpts = append(clientOpts, genai.WithBackoff(d))
	}
	client := genai.NewHTTPClient("https://api.anthropic.com", cfg.APIKey, clientOpts...)

	catalog := confluence.DefaultConstraints()
	var consultants []*panel.Consultant
	for _, profile := range panel.DefaultPanel() {
		consultants = append(consultants, panel.NewConsultant(client, profile, catalog, panel.WithLogger(log)))
	}

	parser := intent.NewParser(client, intent.WithLogger(log))
	progress := synth.NewProgressReporter()

	opts := []synth.Option{
		synth.WithLogger(log),
		synth.WithProgress(progress),
		synth.WithOutputDir(cfg.OutputDir),
	}
	if cfg.RoundBound > 0 {
		opts = append(opts, synth.WithRoundBound(cfg.RoundBound))
	}
	if cfg.RetryBudget > 0 {
		opts = append(opts, synth.WithRetryBudget(cfg.RetryBudget))
	}
	if d := cfg.ExpertTimeout(); d > 0 {
		opts = append(opts, synth.WithExpertTimeout(d))
	}

	return synth.NewCoordinator(parser, consultants, catalog, opts...), progress
}

// report prints the session outcome and optionally hands the accepted
// configuration to CONFLUENCE.
func report(ctx context.Context, cfg *config.ProjectConfig, result *synth.SessionResult, execute bool, log *slog.Logger) error {
	switch result.State {
	case synth.StateAccepted:
		fmt.Printf("\naccepted after %d round(s)\n", len(result.Trail.Rounds))
		fmt.Printf("configuration: %s\n", result.ConfigPath)
		fmt.Printf("audit trail:   %s\n", result.AuditPath)
	case synth.StateEscalated:
		fmt.Printf("\nescalated for human review after %d round(s)\n", len(result.Trail.Rounds))
		fmt.Printf("%s\n", result.Trail.Detail)
		fmt.Printf("audit trail: %s\n", result.AuditPath)
		return nil
	default:
		return fmt.Errorf("session failed: %s", result.Trail.Detail)
	}

	if !execute {
		return nil
	}

	runnerOpts := []handoff.RunnerOption{handoff.WithLogger(log)}
	if cfg.ConfluenceBinary != "" {
		runnerOpts = append(runnerOpts, handoff.WithBinary(cfg.ConfluenceBinary))
	}
	runner := handoff.NewRunner(runnerOpts...)

	started := time.Now()
	runReport, err := runner.Execute(ctx, result.ConfigPath)
	if err != nil {
		if runReport != nil && runReport.Output != "" {
			fmt.Fprintln(os.Stderr, runReport.Output)
		}
		return err
	}
	fmt.Printf("CONFLUENCE run finished in %s\n", time.Since(started).Round(time.Second))

	model, _ := result.Config.Get(confluence.FieldHydrologicalModel)
	modelName, _ := model.(string)
	rs := handoff.Locate(handoff.Directive{
		ConfigPath:   result.ConfigPath,
		DataDir:      cfg.DataDir,
		DomainName:   result.Intent.DomainName(),
		ExperimentID: result.ExperimentID,
		Model:        modelName,
	})
	fmt.Printf("results: %s\n", rs.SimulationDir)
	if rs.Streamflow != "" {
		fmt.Printf("streamflow: %s\n", rs.Streamflow)
	}
	return nil
}
