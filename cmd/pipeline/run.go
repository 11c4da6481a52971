package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/restaurant-pipeline/internal/pipeline"
	"github.com/JakeFAU/restaurant-pipeline/internal/prompt"
)

func newRunCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the next batch of restaurants through all five phases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.services()
			if err != nil {
				return err
			}
			var hooks pipeline.Hooks
			if c.cfg.Pipeline.Interactive {
				hooks = prompt.New(os.Stdin, cmd.ErrOrStderr())
			}
			orch, err := a.NewOrchestrator(hooks)
			if err != nil {
				return err
			}

			report, err := orch.Run(cmd.Context())
			switch {
			case errors.Is(err, pipeline.ErrRunAborted):
				c.logger.Warn("run aborted by operator", zap.String("state", string(orch.State())))
				return nil
			case errors.Is(err, context.Canceled):
				c.logger.Warn("run interrupted; frontier state is kept", zap.String("state", string(orch.State())))
				return nil
			case err != nil:
				return fmt.Errorf("run pipeline: %w", err)
			}
			return printReport(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().Bool("interactive", false, "confirm each phase transition on the terminal")
	cmd.Flags().Int("batch-size", 0, "restaurants to load this run (overrides pipeline.batch_size)")
	_ = c.v.BindPFlag("pipeline.interactive", cmd.Flags().Lookup("interactive"))
	_ = c.v.BindPFlag("pipeline.batch_size", cmd.Flags().Lookup("batch-size"))
	return cmd
}

func printReport(w io.Writer, r pipeline.RunReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run %s: %d restaurants seeded in %s\n", r.RunID, r.Seeded, r.Finished.Sub(r.StartedAt).Round(time.Millisecond))
	fmt.Fprintln(tw, "PHASE\tATTEMPTED\tFAILED\tNOTE")
	for _, s := range r.Phases {
		note := ""
		switch {
		case s.Skipped:
			note = "skipped"
		case s.Stalled > 0:
			note = fmt.Sprintf("%d stuck heads dropped", s.Stalled)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", s.Phase, s.Attempted, s.Failed, note)
	}
	fmt.Fprintf(tw, "frontier depth\t%d\n", r.Final.FrontierDepth)
	return tw.Flush()
}
