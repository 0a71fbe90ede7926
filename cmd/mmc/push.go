package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/domain"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/pipeline"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Manage the outbound push queue",
}

var pushRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Push one batch of pending jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Push.RunBatch(ctx)
		if res != nil {
			fmt.Printf("Pushed %d jobs, %d failed attempts\n", res.Processed, res.Failed)
		}
		return err
	},
}

var pushListCmd = &cobra.Command{
	Use:   "list",
	Short: "List push jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		jobs, err := a.Queue.ListJobs(ctx, domain.PushStatus(status), limit)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Println("No push jobs.")
			return nil
		}

		for _, j := range jobs {
			line := fmt.Sprintf("%-6d %-8s %-19s release=%d attempts=%d", j.ID, j.Status, j.Action, j.ReleaseID, j.Attempts)
			if j.LastError != nil {
				line += "  " + *j.LastError
			}
			fmt.Println(line)
		}
		return nil
	},
}

var pushRetryCmd = &cobra.Command{
	Use:   "retry <job-id>",
	Short: "Move a failed job back to pending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid job id %q", args[0])
		}

		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Queue.Retry(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Job %d is pending again\n", id)
		return nil
	},
}

var pushClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete finished jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Queue.ClearDone(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Cleared %d jobs\n", n)
		return nil
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Record local edits for pushing",
}

var queueAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Queue a remote mutation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		flags := cmd.Flags()
		action, _ := flags.GetString("action")
		release, _ := flags.GetInt64("release")
		job := &domain.PushJob{
			Action:    domain.PushAction(action),
			Username:  username(cmd, a),
			ReleaseID: release,
		}
		if flags.Changed("instance") {
			id, _ := flags.GetInt64("instance")
			job.InstanceID = &id
		}
		if flags.Changed("rating") {
			r, _ := flags.GetInt("rating")
			job.Rating = &r
		}
		if flags.Changed("media") {
			v, _ := flags.GetString("media")
			job.MediaCondition = &v
		}
		if flags.Changed("sleeve") {
			v, _ := flags.GetString("sleeve")
			job.SleeveCondition = &v
		}
		if flags.Changed("notes") {
			v, _ := flags.GetString("notes")
			job.Notes = &v
		}

		saved, err := a.Queue.Enqueue(ctx, job)
		if err != nil {
			return err
		}
		fmt.Printf("Queued job %d (%s release %d)\n", saved.ID, saved.Action, saved.ReleaseID)
		return nil
	},
}

var breakerCmd = &cobra.Command{
	Use:   "breaker",
	Short: "Inspect or reset the sync circuit breaker",
}

var breakerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the breaker state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		status, err := pipeline.ReadBreaker(ctx, a.State)
		if err != nil {
			return err
		}
		if status.Disabled {
			fmt.Println("Sync: DISABLED")
			fmt.Printf("Last error: %s\n", status.LastFatalError)
		} else {
			fmt.Println("Sync: enabled")
		}
		fmt.Printf("Consecutive failures: %d\n", status.ConsecutiveFailures)
		return nil
	},
}

var breakerResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the breaker so sync can resume",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := pipeline.ResetBreaker(ctx, a.State); err != nil {
			return err
		}
		fmt.Println("Breaker reset")
		return nil
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached remote lookups",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop cached lookups such as collection field ids",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DB.ClearCache(ctx); err != nil {
			return err
		}
		fmt.Println("Cache cleared")
		return nil
	},
}
