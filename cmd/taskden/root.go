package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"taskden/internal/app"
	"taskden/internal/command"
	"taskden/internal/config"
	"taskden/internal/model"
	"taskden/internal/ops"
	"taskden/internal/store"
)

func newRootCmd() *cobra.Command {
	var cfgPath string
	var a *app.App

	root := &cobra.Command{
		Use:           "taskden",
		Short:         "Personal task tracker with natural-language scheduling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
			a, err = app.New(cfg, logger)
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a != nil {
				a.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "taskden.yml", "path to config file")

	root.AddCommand(
		newCreateCmd(&a),
		newListCmd(&a),
		newGetCmd(&a),
		newUpdateCmd(&a),
		newDeleteCmd(&a),
		newTodayCmd(&a),
		newFireCmd(&a),
		newBatchCmd(&a),
		newOpsCmd(&a),
	)
	return root
}

func printTask(w io.Writer, t model.Task) {
	line := fmt.Sprintf("%s  [%s/%s]  %s", t.ID, t.Status, t.Priority, t.Title)
	if t.WhenTime != nil {
		line += "  due " + t.WhenTime.Format("2006-01-02 15:04")
	}
	if t.ReminderTime != nil && !t.ReminderSent {
		line += "  remind " + t.ReminderTime.Format("2006-01-02 15:04")
	}
	fmt.Fprintln(w, line)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func opErr(err error) error {
	return fmt.Errorf("%s", command.ErrorMessage(err))
}

func newCreateCmd(a **app.App) *cobra.Command {
	var req command.CreateRequest
	var tags string

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Title = strings.Join(args, " ")
			if tags != "" {
				req.Tags = strings.Split(tags, ",")
			}
			t, err := (*a).Handler.Create(req)
			if err != nil {
				return opErr(err)
			}
			printTask(cmd.OutOrStdout(), t)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Description, "desc", "", "description")
	cmd.Flags().StringVar(&req.When, "when", "", "deadline expression (\"tomorrow 3pm\")")
	cmd.Flags().StringVar(&req.Remind, "remind", "", "reminder offset (\"30 minutes before\")")
	cmd.Flags().StringVar(&req.ReminderAt, "remind-at", "", "explicit reminder expression")
	cmd.Flags().StringVar(&req.Priority, "priority", "", "high|medium|low")
	cmd.Flags().StringVar(&req.Assignee, "assignee", "", "assignee")
	cmd.Flags().StringVar(&tags, "tags", "", "comma-separated tags")
	cmd.Flags().BoolVar(&req.AutoLog, "auto-log", false, "forward completion to the diary")
	return cmd
}

func newListCmd(a **app.App) *cobra.Command {
	var f store.Filter
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tasks, err := (*a).Handler.ListTasks(f)
			if err != nil {
				return opErr(err)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), tasks)
			}
			for _, t := range tasks {
				printTask(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "pending|completed|all")
	cmd.Flags().StringVar(&f.Priority, "priority", "", "high|medium|low")
	cmd.Flags().StringVar(&f.Tag, "tag", "", "tag filter")
	cmd.Flags().StringVar(&f.Bucket, "due", "", "today|week|month|overdue")
	cmd.Flags().StringVar(&f.SortBy, "sort", "", "when|priority|created")
	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON output")
	return cmd
}

func newGetCmd(a **app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show task detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := (*a).Handler.GetTaskDetail(args[0])
			if err != nil {
				return opErr(err)
			}
			return printJSON(cmd.OutOrStdout(), d)
		},
	}
}

func newUpdateCmd(a **app.App) *cobra.Command {
	var (
		title, desc, priority, status, assignee, reflection string
		when, remind, remindAt, tags                        string
		autoLog                                             bool
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := command.UpdateRequest{ID: args[0]}
			set := func(name string, dst **string, val string) {
				if cmd.Flags().Changed(name) {
					*dst = &val
				}
			}
			set("title", &req.Title, title)
			set("desc", &req.Description, desc)
			set("priority", &req.Priority, priority)
			set("status", &req.Status, status)
			set("assignee", &req.Assignee, assignee)
			set("reflection", &req.Reflection, reflection)
			set("when", &req.When, when)
			set("remind", &req.Remind, remind)
			set("remind-at", &req.ReminderAt, remindAt)
			if cmd.Flags().Changed("tags") {
				split := []string{}
				if tags != "" {
					split = strings.Split(tags, ",")
				}
				req.Tags = &split
			}
			if cmd.Flags().Changed("auto-log") {
				req.AutoLog = &autoLog
			}

			t, err := (*a).Handler.Update(req)
			if err != nil {
				return opErr(err)
			}
			printTask(cmd.OutOrStdout(), t)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&desc, "desc", "", "new description")
	cmd.Flags().StringVar(&priority, "priority", "", "high|medium|low")
	cmd.Flags().StringVar(&status, "status", "", "pending|completed")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee")
	cmd.Flags().StringVar(&reflection, "reflection", "", "completion reflection")
	cmd.Flags().StringVar(&when, "when", "", "deadline expression; empty clears")
	cmd.Flags().StringVar(&remind, "remind", "", "reminder offset from deadline")
	cmd.Flags().StringVar(&remindAt, "remind-at", "", "explicit reminder expression; empty clears")
	cmd.Flags().StringVar(&tags, "tags", "", "comma-separated tags")
	cmd.Flags().BoolVar(&autoLog, "auto-log", false, "forward completion to the diary")
	return cmd
}

func newDeleteCmd(a **app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := (*a).Handler.Delete(args[0]); err != nil {
				return opErr(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
			return nil
		},
	}
}

func newTodayCmd(a **app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Show today's, overdue, and unscheduled pending tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			daily, err := (*a).Handler.GetDailyTasks()
			if err != nil {
				return opErr(err)
			}
			out := cmd.OutOrStdout()
			for title, group := range map[string][]model.Task{
				"Due today":   daily.DueToday,
				"Overdue":     daily.Overdue,
				"Unscheduled": daily.Dateless,
			} {
				if len(group) == 0 {
					continue
				}
				fmt.Fprintln(out, title+":")
				for _, t := range group {
					printTask(out, t)
				}
			}
			return nil
		},
	}
}

func newFireCmd(a **app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "fire <id>",
		Short: "Fire the reminder for a task (invoked by the external scheduler)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := (*a).Handler.FireReminder(cmd.Context(), args[0])
			if err != nil {
				return opErr(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
}

// batch commands read a JSON array of requests from stdin and emit
// per-item results.
func newBatchCmd(a **app.App) *cobra.Command {
	batch := &cobra.Command{
		Use:   "batch",
		Short: "Batch operations over stdin JSON",
	}

	batch.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Create tasks from a JSON array of requests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var reqs []command.CreateRequest
			if err := json.NewDecoder(cmd.InOrStdin()).Decode(&reqs); err != nil {
				return fmt.Errorf("decode requests: %w", err)
			}
			items, err := (*a).Handler.BatchCreate(reqs)
			if err != nil {
				return opErr(err)
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	})

	batch.AddCommand(&cobra.Command{
		Use:   "update",
		Short: "Update tasks from a JSON array of requests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var reqs []command.UpdateRequest
			if err := json.NewDecoder(cmd.InOrStdin()).Decode(&reqs); err != nil {
				return fmt.Errorf("decode requests: %w", err)
			}
			items, err := (*a).Handler.BatchUpdate(reqs)
			if err != nil {
				return opErr(err)
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	})

	batch.AddCommand(&cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete tasks by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := (*a).Handler.BatchDelete(args)
			if err != nil {
				return opErr(err)
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	})

	return batch
}

func newOpsCmd(a **app.App) *cobra.Command {
	opsCmd := &cobra.Command{
		Use:   "ops",
		Short: "Operational helpers",
	}

	var out string
	backup := &cobra.Command{
		Use:   "backup",
		Short: "Archive the data directory to a tar.gz",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				ts := time.Now().UTC().Format("20060102T150405Z")
				out = "backups/taskden-" + ts + ".tar.gz"
			}
			if err := ops.BackupDataDir((*a).Config.DataDir, out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "backup written to", out)
			return nil
		},
	}
	backup.Flags().StringVar(&out, "out", "", "output archive path")

	var target string
	restore := &cobra.Command{
		Use:   "restore <archive>",
		Short: "Restore a backup archive into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" {
				target = (*a).Config.DataDir
			}
			if err := ops.RestoreDataDir(args[0], target); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "restored into", target)
			return nil
		},
	}
	restore.Flags().StringVar(&target, "into", "", "target directory (default: data dir)")

	opsCmd.AddCommand(backup, restore)
	return opsCmd
}
