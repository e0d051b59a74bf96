package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	apperrors "membership-workflow/internal/common/errors"
	"membership-workflow/internal/platform"
	cs "membership-workflow/internal/workers/operator/cleanup-spaces"
	ds "membership-workflow/internal/workers/operator/delete-space"
	hc "membership-workflow/internal/workers/operator/health-check"
	la "membership-workflow/internal/workers/operator/list-applications"
	pp "membership-workflow/internal/workers/operator/post-panel"
	qs "membership-workflow/internal/workers/operator/query-status"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// withApp wires the process for a single operator command and tears it down after.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, sync, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer sync()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// actor is the operator running the CLI. Shell access stands in for the command role
// unless --actor-roles narrows it.
func (a *app) actor() platform.Principal {
	roles := viper.GetStringSlice("actor-roles")
	if len(roles) == 0 {
		roles = a.cfg.Authorization.CommandRoles
	}
	return platform.Principal{ID: viper.GetString("actor-id"), Name: viper.GetString("actor-id"), Roles: roles}
}

func taskDisabled(taskType string) error {
	return fmt.Errorf("task %s is disabled", taskType)
}

// commandError prints the message the platform would show and keeps the cause.
func commandError(err error) error {
	code := apperrors.CodeOf(err)
	if code == apperrors.ErrCodeInternal {
		return err
	}
	return fmt.Errorf("%s: %w", apperrors.UserMessage(code), err)
}

func panelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "panel <space>",
		Short: "Post the submission panel to a space",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if a.handlers.PostPanel == nil {
					return taskDisabled(pp.TaskType)
				}
				out, err := a.handlers.PostPanel.Execute(ctx, &pp.Input{SpaceRef: args[0], Actor: a.actor()})
				if err != nil {
					return commandError(err)
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("panel posted to %s (message %s)\n", out.SpaceRef, out.MessageRef)
				return nil
			})
		},
	}
}

func applicationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "applications",
		Short: "Counts per status and the most recent pending applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if a.handlers.List == nil {
					return taskDisabled(la.TaskType)
				}
				out, err := a.handlers.List.Execute(ctx, &la.Input{Actor: a.actor()})
				if err != nil {
					return commandError(err)
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}

				fmt.Println(out.Title)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Pending", "Approved", "Rejected"})
				tw.AppendRow(table.Row{out.Pending, out.Approved, out.Rejected})
				tw.Render()

				if len(out.Recent) == 0 {
					return nil
				}
				recent := table.NewWriter()
				recent.SetOutputMirror(os.Stdout)
				recent.AppendHeader(table.Row{"ID", "Submitter", "Profile", "Space", "Submitted"})
				for _, e := range out.Recent {
					recent.AppendRow(table.Row{e.ApplicationID, e.SubmitterID, e.ProfileName, e.Space, e.SubmittedAt})
				}
				recent.Render()
				return nil
			})
		},
	}
}

func cleanupCmd() *cobra.Command {
	var maxAgeDays int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete discussion spaces older than the configured age",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if a.handlers.Cleanup == nil {
					return taskDisabled(cs.TaskType)
				}
				out, err := a.handlers.Cleanup.Execute(ctx, &cs.Input{Actor: a.actor(), MaxAgeDays: maxAgeDays})
				if err != nil {
					return commandError(err)
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Deleted", "Failed", "Skipped"})
				tw.AppendRow(table.Row{out.Deleted, out.Failed, out.Skipped})
				tw.Render()
				fmt.Println(out.Message)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&maxAgeDays, "max-age-days", 0, "override cleanup.max_age_days")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [submitter]",
		Short: "Show the most recent applications of a submitter",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if a.handlers.QueryStatus == nil {
					return taskDisabled(qs.TaskType)
				}
				in := &qs.Input{Actor: a.actor()}
				if len(args) == 1 {
					in.SubmitterID = args[0]
				}
				out, err := a.handlers.QueryStatus.Execute(ctx, in)
				if err != nil {
					return commandError(err)
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Println(out.Title)
				if len(out.Records) == 0 {
					fmt.Println(out.Message)
					return nil
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Status", "Profile", "Space", "Reviewer", "Reason", "Submitted"})
				for _, r := range out.Records {
					tw.AppendRow(table.Row{r.ApplicationID, r.Status, r.ProfileName, r.Space, r.Reviewer, r.Reason, r.SubmittedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func deleteSpaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-space <space>",
		Short: "Delete an application discussion space",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if a.handlers.DeleteSpace == nil {
					return taskDisabled(ds.TaskType)
				}
				out, err := a.handlers.DeleteSpace.Execute(ctx, &ds.Input{Actor: a.actor(), SpaceRef: args[0]})
				if err != nil {
					return commandError(err)
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Println(out.Message)
				return nil
			})
		},
	}
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the store, the platform and the optional backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if a.handlers.HealthCheck == nil {
					return taskDisabled(hc.TaskType)
				}
				out, err := a.handlers.HealthCheck.Execute(ctx, &hc.Input{Actor: a.actor()})
				if err != nil {
					return commandError(err)
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				names := make([]string, 0, len(out.Checks))
				for name := range out.Checks {
					names = append(names, name)
				}
				sort.Strings(names)

				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Check", "Result"})
				for _, name := range names {
					tw.AppendRow(table.Row{name, out.Checks[name]})
				}
				tw.AppendFooter(table.Row{"platform latency", fmt.Sprintf("%d ms", out.LatencyMs)})
				tw.Render()
				fmt.Println(out.Message)
				return nil
			})
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
