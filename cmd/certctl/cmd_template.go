package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Yair4430/CertiGranja-2.0/sheet"
)

var templateFlags struct {
	output string
}

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write an empty batch sheet with the expected headers",
	RunE:  runTemplate,
}

func init() {
	templateCmd.Flags().StringVarP(&templateFlags.output, "output", "o", sheet.TemplateName, "Where to write the template")
}

func runTemplate(cmd *cobra.Command, _ []string) error {
	buf, err := sheet.Template()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(templateFlags.output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(templateFlags.output, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Template written to %s\n", templateFlags.output)
	return nil
}
