package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stageline/internal/app"
	"stageline/internal/domain"
	"stageline/internal/engine"
	"stageline/internal/remote"
	"stageline/internal/ui"
)

func listCmd() *cobra.Command {
	var stage, format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues grouped by stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "table" && format != "json" {
				return domain.UsageError{Msg: fmt.Sprintf("invalid format %q (valid: table, json)", format)}
			}
			var filter domain.Stage
			if stage != "" {
				st, err := domain.ParseStage(stage)
				if err != nil {
					return err
				}
				filter = st
			}
			return withApp(cmd.Context(), func(ctx context.Context, c *app.Context) error {
				groups, err := c.Engine.List(ctx, filter)
				if err != nil {
					return err
				}
				if format == "json" || viper.GetBool("json") {
					return printJSON(flattenGroups(groups))
				}
				renderGroups(groups)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&stage, "stage", "", "only list this stage")
	cmd.Flags().StringVar(&format, "format", "table", "output format (table, json)")
	return cmd
}

// flattenGroups lists summaries in stage order, then discovery order within a stage.
func flattenGroups(groups []domain.StageGroup) []domain.IssueSummary {
	out := []domain.IssueSummary{}
	for _, g := range groups {
		out = append(out, g.Issues...)
	}
	return out
}

func renderGroups(groups []domain.StageGroup) {
	for i, g := range groups {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("%s (%d)\n", ui.RenderStage(string(g.Stage)), len(g.Issues))
		if len(g.Issues) == 0 {
			continue
		}
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(table.Row{"Name", "Type", "Title", "Owner", "Created", "Remote"})
		for _, is := range g.Issues {
			tw.AppendRow(table.Row{is.Name, is.Type, is.Title, is.Owner, is.Created, is.RemoteID})
		}
		tw.Render()
	}
}

func moveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move <issue> <stage>",
		Short: "Move an issue to another stage",
		Long:  "Runs every validator that applies to the target stage. A rejected move changes nothing and lists all blocking reasons.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := domain.ParseStage(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, c *app.Context) error {
				issue, err := c.Engine.Move(ctx, args[0], target, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(issue.Summary())
				}
				fmt.Printf("%s moved %s to %s\n", ui.RenderPass(ui.IconPass), issue.Name, issue.Stage)
				return nil
			})
		},
	}
	return cmd
}

func issueCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "issue", Short: "Manage issues"}
	cmd.AddCommand(issueCreateCmd())
	cmd.AddCommand(issueImportCmd())
	cmd.AddCommand(issueShowCmd())
	cmd.AddCommand(issueEditCmd())
	cmd.AddCommand(issueLinkCmd())
	return cmd
}

func issueCreateCmd() *cobra.Command {
	var typ, title, owner, bodyFile string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an issue in backlog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readBody(bodyFile)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, c *app.Context) error {
				issue, err := c.Engine.CreateIssue(ctx, engine.IssueCreateOptions{
					Name:    args[0],
					Type:    typ,
					Title:   title,
					Owner:   owner,
					Body:    body,
					ActorID: actorID(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(issue.Summary())
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "feature", "issue type (feature, bug, task)")
	cmd.Flags().StringVar(&title, "title", "", "issue title")
	cmd.Flags().StringVar(&owner, "owner", "", "owner")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "read the body from a file (- for stdin)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func issueImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Create an issue from a document with a YAML header (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readBody(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, c *app.Context) error {
				issue, err := c.Engine.ImportIssue(ctx, []byte(doc), actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(issue.Summary())
			})
		},
	}
	return cmd
}

func issueShowCmd() *cobra.Command {
	var markdown bool
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, c *app.Context) error {
				if markdown {
					doc, err := c.Engine.ExportIssue(ctx, args[0])
					if err != nil {
						return err
					}
					_, err = os.Stdout.Write(doc)
					return err
				}
				issue, err := c.Engine.GetIssue(ctx, args[0])
				if err != nil {
					return err
				}
				specs, err := c.Engine.ListSpecs(ctx, issue.Name)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"issue": issue, "specs": specs})
			})
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "print the issue document with its YAML header")
	return cmd
}

func issueEditCmd() *cobra.Command {
	var title, owner, bodyFile string
	cmd := &cobra.Command{
		Use:   "edit <name>",
		Short: "Edit title, owner or body of an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.IssueUpdateOptions{Name: args[0], ActorID: actorID()}
			if cmd.Flags().Changed("title") {
				opts.Title = stringPtr(title)
			}
			if cmd.Flags().Changed("owner") {
				opts.Owner = stringPtr(owner)
			}
			if cmd.Flags().Changed("body-file") {
				body, err := readBody(bodyFile)
				if err != nil {
					return err
				}
				opts.Body = stringPtr(body)
			}
			if opts.Title == nil && opts.Owner == nil && opts.Body == nil {
				return domain.UsageError{Msg: "nothing to edit; pass --title, --owner or --body-file"}
			}
			return withApp(cmd.Context(), func(ctx context.Context, c *app.Context) error {
				issue, err := c.Engine.UpdateIssue(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(issue.Summary())
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&owner, "owner", "", "new owner (empty to clear)")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "replace the body from a file (- for stdin)")
	return cmd
}

func issueLinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link <name>",
		Short: "Resolve the issue in Linear and store its identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, c *app.Context) error {
				resolver, err := remote.NewLinearResolver(c.Config)
				if err != nil {
					return err
				}
				resolver.Logger = c.Logger
				issue, err := c.Engine.LinkRemote(ctx, args[0], resolver, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(issue.Summary())
				}
				fmt.Printf("%s linked %s to %s\n", ui.RenderPass(ui.IconPass), issue.Name, issue.RemoteID)
				return nil
			})
		},
	}
	return cmd
}
