package main

import (
	"github.com/Ramsey-B/clover/pkg/dedupe"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/spf13/cobra"
)

var (
	mergeTenant      string
	mergePrimary     int64
	mergeDuplicates  []int64
	mergeConfirm     bool
	mergeSkipContact bool
	mergeSkipHistory bool
	mergeOutput      string
)

func mergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge duplicate payees into a primary payee",
		Long: `Merge duplicate payees into a primary payee. Nothing is written without --confirm.

Examples:
  clover merge --tenant acme --primary 12 --duplicates 14,15 --confirm`,
		RunE: runMerge,
	}

	cmd.Flags().StringVarP(&mergeTenant, "tenant", "t", "", "tenant id")
	cmd.Flags().Int64Var(&mergePrimary, "primary", 0, "surviving payee id")
	cmd.Flags().Int64SliceVar(&mergeDuplicates, "duplicates", nil, "payee ids to merge into the primary")
	cmd.Flags().BoolVar(&mergeConfirm, "confirm", false, "confirm the merge")
	cmd.Flags().BoolVar(&mergeSkipContact, "skip-contact-info", false, "do not backfill contact fields onto the primary")
	cmd.Flags().BoolVar(&mergeSkipHistory, "skip-transactions", false, "do not move transactions onto the primary")
	cmd.Flags().StringVarP(&mergeOutput, "output", "o", "json", "json or yaml")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("primary")
	_ = cmd.MarkFlagRequired("duplicates")

	return cmd
}

func runMerge(cmd *cobra.Command, args []string) error {
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

	result, err := a.service.MergeDuplicatePayees(ctx, dedupe.MergeRequest{
		PrimaryPayeeID:    mergePrimary,
		DuplicatePayeeIDs: mergeDuplicates,
		Strategy: &models.MergeStrategy{
			MergeContactInfo:           !mergeSkipContact,
			PreserveTransactionHistory: !mergeSkipHistory,
		},
		Confirmed: mergeConfirm,
	}, mergeTenant)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), mergeOutput, result)
}
