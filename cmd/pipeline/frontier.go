package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/restaurant-pipeline/internal/frontier"
)

func newFrontierCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frontier",
		Short: "Inspect and adjust the persistent priority queue",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Print the queue depth and head",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := c.services()
				if err != nil {
					return err
				}
				depth, err := a.Store().QueueDepth(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued: %d\n", depth)
				if depth == 0 {
					return nil
				}
				return printHead(cmd, a.Store())
			},
		},
		&cobra.Command{
			Use:   "peek",
			Short: "Print the highest priority URL",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := c.services()
				if err != nil {
					return err
				}
				return printHead(cmd, a.Store())
			},
		},
		&cobra.Command{
			Use:   "reprioritize URL PRIORITY",
			Short: "Change the priority of a queued URL",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				priority, err := strconv.ParseFloat(args[1], 64)
				if err != nil {
					return fmt.Errorf("priority %q: %w", args[1], err)
				}
				a, err := c.services()
				if err != nil {
					return err
				}
				target, err := frontier.NormalizeURL(args[0])
				if err != nil {
					return err
				}
				outcome, err := a.Store().Reprioritize(cmd.Context(), target, priority)
				if err != nil {
					return err
				}
				return report(cmd, outcome, fmt.Sprintf("%s now at %g", target, priority), target)
			},
		},
		&cobra.Command{
			Use:   "drop URL",
			Short: "Remove a URL from the queue",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := c.services()
				if err != nil {
					return err
				}
				target, err := frontier.NormalizeURL(args[0])
				if err != nil {
					return err
				}
				outcome, err := a.Store().Dequeue(cmd.Context(), target)
				if err != nil {
					return err
				}
				return report(cmd, outcome, target+" dropped", target)
			},
		},
	)
	return cmd
}

func printHead(cmd *cobra.Command, store frontier.Store) error {
	head, outcome, err := store.PeekHighestPriority(cmd.Context())
	if err != nil {
		return err
	}
	if outcome == frontier.NotFound {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "queue is empty")
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "head: %s priority=%g queued_at=%s\n",
		head.URL, head.Priority, head.QueuedAt.Format("2006-01-02T15:04:05Z07:00"))
	return err
}

func report(cmd *cobra.Command, outcome frontier.Outcome, done, target string) error {
	msg := done
	if outcome == frontier.NotFound {
		msg = target + " is not queued"
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), msg)
	return err
}
