package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Yair4430/CertiGranja-2.0/sheet"
)

var validateCmd = &cobra.Command{
	Use:   "validate <sheet.xlsx>",
	Short: "Check a batch sheet without touching the portal",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	records, err := sheet.ReadFile(args[0], time.Now())
	var verr *sheet.ValidationError
	if errors.As(err, &verr) {
		for _, v := range verr.Violations {
			fmt.Fprintf(out, "  %s\n", v)
		}
		return fmt.Errorf("%d invalid cells", len(verr.Violations))
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d records OK\n", len(records))
	return nil
}
