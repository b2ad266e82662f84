package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Yair4430/CertiGranja-2.0/merge"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <dir>",
	Short: "Merge the certificate PDFs in a folder, one page per document number",
	Args:  cobra.ExactArgs(1),
	RunE:  runMerge,
}

func runMerge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rules, err := merge.RulesFromConfig(cfg.Merge)
	if err != nil {
		return err
	}

	m := merge.New(merge.PlainText{}, merge.PDFCPU{}, rules, cfg.Output.MergedFile)
	report, err := m.Merge(cmd.Context(), args[0])
	if report != nil {
		printReport(cmd, report)
	}
	if errors.Is(err, merge.ErrNoPages) {
		return fmt.Errorf("no certificate pages found in %s", args[0])
	}
	return err
}

func printReport(cmd *cobra.Command, r *merge.Report) {
	out := cmd.OutOrStdout()
	if r.Output != "" && r.Included > 0 {
		fmt.Fprintf(out, "Output:     %s\n", r.Output)
	}
	fmt.Fprintf(out, "Included:   %d\n", r.Included)
	fmt.Fprintf(out, "Unique:     %d\n", r.UniqueKeys)
	fmt.Fprintf(out, "Duplicates: %d\n", r.Duplicates)
	fmt.Fprintf(out, "Dropped:    %d\n", r.Dropped)
	for _, f := range r.Unreadable {
		fmt.Fprintf(out, "Unreadable: %s\n", f)
	}
}
