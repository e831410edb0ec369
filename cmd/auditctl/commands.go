package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/anomaly"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/dataset"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/engine"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/pricing"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/reconcile"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/sampling"
)

func newScoreCmd(g *globalFlags) *cobra.Command {
	var (
		req engine.RiskRequest
		ce  float64
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Assess one risk from likelihood, impact and control effectiveness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("control-effectiveness") {
				req.ControlEffectiveness = &ce
			}
			return g.withEngine(cmd, func(_ context.Context, eng *engine.Engine) error {
				res, err := eng.AssessRisk(req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().IntVarP(&req.Likelihood, "likelihood", "l", 0, "Likelihood rating 1-5")
	cmd.Flags().IntVarP(&req.Impact, "impact", "i", 0, "Impact rating 1-5")
	cmd.Flags().Float64Var(&ce, "control-effectiveness", 0, "Control effectiveness in [0,1]")
	cmd.Flags().StringVar(&req.Name, "name", "", "Risk name")
	cmd.Flags().StringVar(&req.Category, "category", "", "Appetite category, e.g. custody")
	_ = cmd.MarkFlagRequired("likelihood")
	_ = cmd.MarkFlagRequired("impact")
	return cmd
}

func newSampleCmd(g *globalFlags) *cobra.Command {
	var (
		txnPath string
		method  string
		params  engine.SamplingParams
		seed    uint64
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Draw an audit sample from a transaction population",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params.Method = sampling.Method(strings.ToUpper(method))
			if cmd.Flags().Changed("seed") {
				params.Seed = &seed
			}
			return g.withEngine(cmd, func(ctx context.Context, eng *engine.Engine) error {
				txns, err := dataset.LoadTransactions(ctx, txnPath)
				if err != nil {
					return err
				}
				sel, err := eng.Sample(txns, params)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "selected %d of %d: %s\n",
					len(sel.Items), len(txns), strings.Join(sel.IDs(), ", "))
				return printJSON(cmd.OutOrStdout(), sel)
			})
		},
	}
	cmd.Flags().StringVarP(&txnPath, "transactions", "t", "", "Transactions file (.csv, .json, .db)")
	cmd.Flags().StringVarP(&method, "method", "m", "", "RANDOM, STRATIFIED or MONETARY_UNIT (default: profile)")
	cmd.Flags().IntVarP(&params.Size, "size", "n", 0, "Sample size (default: profile)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for a reproducible selection")
	cmd.Flags().StringVar(&params.StratifyBy, "stratify-by", "", "category, asset or direction")
	_ = cmd.MarkFlagRequired("transactions")
	return cmd
}

func newAnomaliesCmd(g *globalFlags) *cobra.Command {
	var (
		txnPath string
		methods []string
		params  engine.AnomalyParams
	)
	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "Run anomaly detectors over a transaction population",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, m := range methods {
				params.Methods = append(params.Methods, anomaly.Method(strings.ToUpper(m)))
			}
			return g.withEngine(cmd, func(ctx context.Context, eng *engine.Engine) error {
				txns, err := dataset.LoadTransactions(ctx, txnPath)
				if err != nil {
					return err
				}
				rep, err := eng.DetectAnomalies(txns, params)
				if err != nil {
					return err
				}
				for _, res := range rep.Failed() {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s failed: %s\n", res.Method, res.Error)
				}
				for _, grp := range anomaly.Groups(rep.Flags()) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", grp.GroupID, strings.Join(grp.TransactionIDs, ", "))
				}
				return printJSON(cmd.OutOrStdout(), rep)
			})
		},
	}
	cmd.Flags().StringVarP(&txnPath, "transactions", "t", "", "Transactions file (.csv, .json, .db)")
	cmd.Flags().StringSliceVar(&methods, "methods", nil, "Detectors to run (default: profile)")
	cmd.Flags().StringVar(&params.Timezone, "timezone", "", "Business-hours timezone override")
	cmd.Flags().StringSliceVar(&params.Holidays, "holidays", nil, "Holiday dates, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("transactions")
	return cmd
}

func newBenfordCmd(g *globalFlags) *cobra.Command {
	var txnPath string
	cmd := &cobra.Command{
		Use:   "benford",
		Short: "Test first-digit conformity to Benford's Law",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withEngine(cmd, func(ctx context.Context, eng *engine.Engine) error {
				txns, err := dataset.LoadTransactions(ctx, txnPath)
				if err != nil {
					return err
				}
				res, err := eng.Benford(domain.Amounts(txns), engine.BenfordParams{})
				if res == nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), res.Summary())
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVarP(&txnPath, "transactions", "t", "", "Transactions file (.csv, .json, .db)")
	_ = cmd.MarkFlagRequired("transactions")
	return cmd
}

func newReconcileCmd(g *globalFlags) *cobra.Command {
	var (
		balPath string
		prices  map[string]string
		params  engine.ReconcileParams
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile recorded against observed balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(prices) > 0 {
				book, err := pricing.ParseBook(prices)
				if err != nil {
					return err
				}
				params.Prices = book
			}
			return g.withEngine(cmd, func(ctx context.Context, eng *engine.Engine) error {
				pairs, err := dataset.LoadBalances(ctx, balPath)
				if err != nil {
					return err
				}
				rep, err := eng.Reconcile(pairs, params)
				if err != nil {
					return err
				}
				for _, v := range rep.Variances {
					if v.Status == reconcile.StatusVariance {
						fmt.Fprintln(cmd.ErrOrStderr(), v.Describe())
					}
				}
				return printJSON(cmd.OutOrStdout(), rep)
			})
		},
	}
	cmd.Flags().StringVarP(&balPath, "balances", "b", "", "Balances file (.csv, .json, .db)")
	cmd.Flags().StringToStringVar(&prices, "price", nil, "USD price overrides, e.g. --price BTC=61000")
	cmd.Flags().StringSliceVar(&params.CustodyAccountTypes, "custody-types", nil, "Account types counted as custody")
	_ = cmd.MarkFlagRequired("balances")
	return cmd
}

func newAnalyzeCmd(g *globalFlags) *cobra.Command {
	var (
		txnPath, balPath string
		sections         []string
		seed             uint64
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run a full analysis over transactions and/or balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if txnPath == "" && balPath == "" {
				return fmt.Errorf("at least one of --transactions or --balances is required")
			}
			req := &engine.Request{}
			for _, s := range sections {
				req.Sections = append(req.Sections, engine.Section(strings.ToLower(s)))
			}
			if cmd.Flags().Changed("seed") {
				req.Sampling.Seed = &seed
			}
			return g.withEngine(cmd, func(ctx context.Context, eng *engine.Engine) error {
				var err error
				if txnPath != "" {
					if req.Transactions, err = dataset.LoadTransactions(ctx, txnPath); err != nil {
						return err
					}
				}
				if balPath != "" {
					if req.Balances, err = dataset.LoadBalances(ctx, balPath); err != nil {
						return err
					}
				}
				rep, err := eng.ProcessSync(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rep)
			})
		},
	}
	cmd.Flags().StringVarP(&txnPath, "transactions", "t", "", "Transactions file (.csv, .json, .db)")
	cmd.Flags().StringVarP(&balPath, "balances", "b", "", "Balances file (.csv, .json, .db)")
	cmd.Flags().StringSliceVar(&sections, "sections", nil, "Sections to run (default: all applicable)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for a reproducible sample")
	return cmd
}

func newImportCmd(_ *globalFlags) *cobra.Command {
	var dbPath, txnPath, balPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load CSV or JSON ledger exports into a SQLite database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if txnPath == "" && balPath == "" {
				return fmt.Errorf("at least one of --transactions or --balances is required")
			}
			ctx := cmd.Context()
			store, err := dataset.OpenSQLite(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if txnPath != "" {
				txns, err := dataset.LoadTransactions(ctx, txnPath)
				if err != nil {
					return err
				}
				n, err := store.InsertTransactions(ctx, txns)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "transactions: %d read, %d inserted\n", len(txns), n)
			}
			if balPath != "" {
				pairs, err := dataset.LoadBalances(ctx, balPath)
				if err != nil {
					return err
				}
				if err := store.UpsertBalances(ctx, pairs); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "balances: %d stored\n", len(pairs))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "audit.db", "SQLite database to write")
	cmd.Flags().StringVarP(&txnPath, "transactions", "t", "", "Transactions file (.csv, .json)")
	cmd.Flags().StringVarP(&balPath, "balances", "b", "", "Balances file (.csv, .json)")
	return cmd
}
