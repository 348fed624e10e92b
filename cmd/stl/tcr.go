package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stageline/internal/app"
	"stageline/internal/tcr"
	"stageline/internal/ui"
)

func checkCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "check [step]",
		Short: "Test changed targets with coverage; commit on success",
		Long: `Detects changed files, runs the tests of every affected target with coverage, and
commits everything as "<prefix>: <step>" when all targets pass. A failure commits nothing,
saves the full output and increments the failure streak. Exit status 2 means blocked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			step := ""
			if len(args) == 1 {
				step = args[0]
			}
			return withApp(cmd.Context(), func(ctx context.Context, c *app.Context) error {
				res, err := c.Checker().Check(ctx, step)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					if err := printJSON(res); err != nil {
						return err
					}
				} else {
					fmt.Print(ui.ColorizeLines(res.Format(verbose)))
				}
				if res.Blocked() {
					return &exitError{code: exitBlocked, silent: true}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "include the raw output of every target")
	return cmd
}

func tcrCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tcr", Short: "Inspect the check failure state"}
	cmd.AddCommand(tcrStateCmd())
	cmd.AddCommand(tcrResetCmd())
	return cmd
}

func tcrStateCmd() *cobra.Command {
	var output bool
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the last outcome and failure streak",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, c *app.Context) error {
				st, err := c.StateStore().Load(ctx)
				if err != nil {
					return err
				}
				if output {
					fmt.Print(st.LastFullOutput)
					return nil
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"gate": st.Gate(), "state": st})
				}
				printState(st)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&output, "output", false, "print the full output of the last failed check")
	return cmd
}

func printState(st tcr.RunState) {
	gate := ui.RenderPass(string(st.Gate()))
	if st.Gate() == tcr.GateBlocked {
		gate = ui.RenderFail(string(st.Gate()))
	}
	fmt.Printf("gate:           %s\n", gate)
	fmt.Printf("failure streak: %d\n", st.FailureStreak)
	if st.LastOutcome != "" {
		fmt.Printf("last outcome:   %s\n", st.LastOutcome)
	}
	if st.LastStepName != "" {
		fmt.Printf("last step:      %s\n", st.LastStepName)
	}
	if st.LastCommit != "" {
		fmt.Printf("last commit:    %s\n", st.LastCommit)
	}
	if st.UpdatedAt != "" {
		fmt.Printf("updated:        %s\n", st.UpdatedAt)
	}
}

func tcrResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the failure streak and saved output",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, c *app.Context) error {
				if _, err := c.StateStore().Update(ctx, func(st *tcr.RunState) error {
					*st = tcr.RunState{}
					return nil
				}); err != nil {
					return err
				}
				c.Logger.Info("tcr state reset", "workspace", c.Workspace)
				fmt.Println(ui.RenderPass(ui.IconPass) + " failure state cleared")
				return nil
			})
		},
	}
	return cmd
}
