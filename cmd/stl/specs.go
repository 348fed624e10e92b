package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stageline/internal/app"
	"stageline/internal/domain"
	"stageline/internal/engine"
	"stageline/internal/review"
	"stageline/internal/ui"
)

func specCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Manage the specs of an issue",
		Long:  "Spec statuses go pending -> in-progress -> in-review -> completed. Review verdicts (APPROVED, NEEDS_WORK) decide how a spec leaves review.",
	}
	cmd.AddCommand(specAddCmd())
	cmd.AddCommand(specListCmd())
	cmd.AddCommand(specShowCmd())
	cmd.AddCommand(specStatusCmd())
	cmd.AddCommand(specReviewCmd())
	return cmd
}

func specAddCmd() *cobra.Command {
	var deps []string
	var bodyFile string
	cmd := &cobra.Command{
		Use:   "add <issue> <spec>",
		Short: "Add a pending spec to an issue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readBody(bodyFile)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, c *app.Context) error {
				s, err := c.Engine.AddSpec(ctx, engine.SpecCreateOptions{
					Issue:        args[0],
					Name:         args[1],
					Dependencies: deps,
					Body:         body,
					ActorID:      actorID(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringSliceVar(&deps, "depends-on", nil, "specs of the same issue this one depends on")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "read the body from a file (- for stdin)")
	return cmd
}

func specListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <issue>",
		Short: "List the specs of an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, c *app.Context) error {
				specs, err := c.Engine.ListSpecs(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(specs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.SetStyle(table.StyleLight)
				tw.AppendHeader(table.Row{"Spec", "Status", "Round", "Verdict", "Depends On", "Completed"})
				for _, s := range specs {
					verdict := ""
					if sec := review.Parse(s.Body); sec.Present {
						verdict = string(sec.Verdict)
					}
					completed := ""
					if s.Completed != nil {
						completed = *s.Completed
					}
					tw.AppendRow(table.Row{s.Name, s.Status, s.ReviewRound, verdict, strings.Join(s.Dependencies, ","), completed})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func specShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <issue> <spec>",
		Short: "Show a spec with its body",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, c *app.Context) error {
				s, err := c.Engine.GetSpec(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("%s/%s [%s] round %d\n", s.Issue, s.Name, s.Status, s.ReviewRound)
				if next := engine.AllowedSpecTransitions(s.Status); len(next) > 0 {
					names := make([]string, len(next))
					for i, st := range next {
						names[i] = string(st)
					}
					fmt.Println(ui.RenderMuted("next: " + strings.Join(names, ", ")))
				}
				if s.Body != "" {
					fmt.Println()
					fmt.Println(s.Body)
				}
				return nil
			})
		},
	}
	return cmd
}

func specStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <issue> <spec> <status>",
		Short: "Change the status of a spec",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := domain.ParseSpecStatus(args[2])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, c *app.Context) error {
				s, err := c.Engine.TransitionSpec(ctx, args[0], args[1], status, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("%s %s/%s is %s\n", ui.RenderPass(ui.IconPass), s.Issue, s.Name, s.Status)
				return nil
			})
		},
	}
	return cmd
}

func specReviewCmd() *cobra.Command {
	var verdict, notes string
	cmd := &cobra.Command{
		Use:   "review <issue> <spec>",
		Short: "Record a review verdict on a spec in review",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := review.ParseVerdict(verdict)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, c *app.Context) error {
				s, err := c.Engine.RecordReview(ctx, args[0], args[1], v, notes, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("%s %s/%s round %d: %s\n", ui.RenderPass(ui.IconPass), s.Issue, s.Name, s.ReviewRound, v)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&verdict, "verdict", "", "APPROVED or NEEDS_WORK")
	cmd.Flags().StringVar(&notes, "notes", "", "review notes")
	_ = cmd.MarkFlagRequired("verdict")
	return cmd
}
