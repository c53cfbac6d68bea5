package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/okian/nbaetl/internal/adapters/store/postgres"
	"github.com/okian/nbaetl/internal/pipeline"
	"github.com/okian/nbaetl/internal/trigger"
)

func (c *cli) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once in the foreground and print its report.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := build(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer st.close(context.Background())

			rep, runErr := st.pipeline.Run(ctx, uuid.NewString())
			renderReport(cmd.OutOrStdout(), rep)
			return runErr
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the relational schema.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := postgres.Migrate(c.cfg.Postgres.DSN); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func (c *cli) triggerCmd() *cobra.Command {
	var (
		url     string
		wait    bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Ask a running server to start a pipeline run.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if url == "" {
				url = "http://localhost" + c.cfg.Addr
			}
			client := trigger.New(url, trigger.WithAPIKey(c.cfg.APIKey))

			acc, err := client.Start(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s (run %s)\n", acc.Status, acc.RunID)
			if !wait {
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			run, err := client.Wait(ctx, acc.RunID)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "run %s %s\n", run.ID, run.Status)
			if run.Report != nil {
				renderReport(out, *run.Report)
			}
			if run.Error != "" {
				return fmt.Errorf("run %s: %s", run.ID, run.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "server base URL (default http://localhost<addr>)")
	cmd.Flags().BoolVar(&wait, "wait", false, "poll the run until it finishes")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "how long to wait for the run")
	return cmd
}

// renderReport prints one row per stage.
func renderReport(w io.Writer, rep pipeline.Report) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.SetTitle("run " + rep.RunID)
	t.AppendHeader(table.Row{"Stage", "Outcome", "Took", "Detail"})
	for _, s := range rep.Stages {
		detail := s.Detail
		if s.Error != "" {
			detail = s.Error
		}
		t.AppendRow(table.Row{s.Stage, s.Outcome, s.Duration.Round(time.Millisecond), detail})
	}
	t.AppendFooter(table.Row{"", "", rep.Duration.Round(time.Millisecond), fmt.Sprintf("%d stages", len(rep.Stages))})
	t.Render()
}
