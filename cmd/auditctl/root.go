package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/anomaly"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/config"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/engine"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/logger"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	profile string
	verbose bool
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "auditctl",
		Short:         "Audit analytics for crypto ledgers",
		Long:          `Scores risks, draws audit samples, flags anomalies, runs Benford tests and reconciles balances.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.profile, "profile", "p", os.Getenv("AUDIT_PROFILE"), "Threshold profile YAML (default: built-in)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log engine activity to stderr")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 2*time.Minute, "Operation timeout")

	root.AddCommand(
		newScoreCmd(g),
		newSampleCmd(g),
		newAnomaliesCmd(g),
		newBenfordCmd(g),
		newReconcileCmd(g),
		newAnalyzeCmd(g),
		newImportCmd(g),
	)
	return root
}

func (g *globalFlags) loadProfile() (*config.Profile, error) {
	if g.profile == "" {
		return config.Default(), nil
	}
	l, err := config.NewLoader(g.profile)
	if err != nil {
		return nil, err
	}
	return l.Profile(), nil
}

// withEngine runs fn against a short-lived engine built from the profile.
func (g *globalFlags) withEngine(cmd *cobra.Command, fn func(ctx context.Context, eng *engine.Engine) error) error {
	p, err := g.loadProfile()
	if err != nil {
		return err
	}
	log := zerolog.Nop()
	if g.verbose {
		log = logger.New(logger.Options{Level: p.Logging.Level, Format: "console", Out: cmd.ErrOrStderr()})
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
	defer cancel()
	eng := engine.New(ctx, p, anomaly.DefaultRegistry(), log)
	defer eng.Shutdown()
	return fn(ctx, eng)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
