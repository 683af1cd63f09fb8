package main

import (
	"context"
	"time"

	"github.com/Ramsey-B/clover/pkg/dedupe"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/spf13/cobra"
)

var (
	detectTenant          string
	detectThreshold       float64
	detectStrategy        string
	detectMode            string
	detectIncludeInactive bool
	detectOutput          string
)

func detectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Find duplicate payees for a tenant",
		Long: `Run duplicate detection for one tenant and print the groups.

Examples:
  clover detect --tenant acme
  clover detect --tenant acme --mode llm --threshold 0.9 -o yaml`,
		RunE: runDetect,
	}

	cmd.Flags().StringVarP(&detectTenant, "tenant", "t", "", "tenant id")
	cmd.Flags().Float64Var(&detectThreshold, "threshold", dedupe.DefaultThreshold, "minimum similarity score in [0,1]")
	cmd.Flags().StringVarP(&detectStrategy, "strategy", "s", string(dedupe.DefaultStrategy), "name_only, contact_only or comprehensive")
	cmd.Flags().StringVarP(&detectMode, "mode", "m", string(dedupe.DefaultMode), "simple, ml, llm or llm_direct")
	cmd.Flags().BoolVar(&detectIncludeInactive, "include-inactive", false, "include inactive payees")
	cmd.Flags().StringVarP(&detectOutput, "output", "o", "json", "json or yaml")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, sync, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer sync()

	ctx := cmd.Context()
	a := newApp(cfg, logger, appOptions{})
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer stopApp(a)

	result, err := a.service.FindDuplicatePayees(ctx, dedupe.FindRequest{
		Threshold:       detectThreshold,
		IncludeInactive: detectIncludeInactive,
		Strategy:        models.MatchStrategy(detectStrategy),
		DetectionMode:   models.DetectionMode(detectMode),
	}, detectTenant)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), detectOutput, result)
}

func stopApp(a *app) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Stop(ctx)
}
