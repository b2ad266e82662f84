package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Yair4430/CertiGranja-2.0/model"
	"github.com/Yair4430/CertiGranja-2.0/portal"
	"github.com/Yair4430/CertiGranja-2.0/service"
	"github.com/Yair4430/CertiGranja-2.0/sheet"
)

var runFlags struct {
	dest     string
	headless bool
}

var runCmd = &cobra.Command{
	Use:   "run <sheet.xlsx>",
	Short: "Request a certificate for every row of a batch sheet",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.dest, "dest", "d", "", "Folder that receives the certificates, results and merged PDF")
	f.BoolVar(&runFlags.headless, "headless", false, "Run Chrome without a window")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("headless") {
		cfg.Portal.Headless = runFlags.headless
	}

	records, err := sheet.ReadFile(args[0], time.Now())
	if err != nil {
		return err
	}

	svc, err := service.NewBatchService(cfg, portal.RodOpener{Options: portal.OptionsFromConfig(cfg.Portal)}, service.NewJobStore(cfg.Store.MaxJobs), nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	res, err := svc.Process(ctx, records, runFlags.dest, func(done, total int) {
		fmt.Fprintf(out, "\r%d/%d", done, total)
	})
	fmt.Fprintln(out)
	if res != nil {
		printSummary(cmd, res)
	}
	return err
}

func printSummary(cmd *cobra.Command, res *service.Result) {
	out := cmd.OutOrStdout()
	statuses := make([]string, 0, len(res.Summary))
	for s := range res.Summary {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Fprintf(out, "%-13s %d\n", s, res.Summary[model.Status(s)])
	}
	if res.ResultsPath != "" {
		fmt.Fprintf(out, "Results: %s\n", res.ResultsPath)
	}
	if res.MergedPath != "" {
		fmt.Fprintf(out, "Merged:  %s\n", res.MergedPath)
	}
}
