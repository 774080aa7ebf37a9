package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"contesttracker/internal/models"
	"contesttracker/internal/service"
)

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run one aggregation cycle",
		Long:  `Fetch every enabled source and reconcile the result into the store. With --dry-run the candidates are printed and nothing is written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			a, cleanup, err := loadApp()
			if err != nil {
				return err
			}
			defer cleanup()

			if dryRun {
				candidates, results := a.Orchestrator.Fetch(cmd.Context(), "")
				for _, r := range results {
					if r.Error != "" {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", r.Source, r.Error)
					}
				}
				return write(cmd, candidates)
			}
			result, err := a.Aggregator.Run(cmd.Context())
			if errors.Is(err, service.ErrAlreadyRunning) {
				return errors.New("another aggregation cycle holds the lock; try again later")
			}
			if err != nil {
				return err
			}
			return write(cmd, result)
		},
	}
	cmd.Flags().Bool("dry-run", false, "fetch only, do not write")
	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Advance contest statuses to the current time",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := loadApp()
			if err != nil {
				return err
			}
			defer cleanup()
			result, err := a.Sweeper.Sweep(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			return write(cmd, result)
		},
	}
}

func remindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Run one reminder tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			atRaw, _ := cmd.Flags().GetString("at")
			now := time.Now().UTC()
			if strings.TrimSpace(atRaw) != "" {
				t, err := time.Parse(time.RFC3339, atRaw)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				now = t.UTC()
			}
			a, cleanup, err := loadApp()
			if err != nil {
				return err
			}
			defer cleanup()
			return write(cmd, a.Scheduler.Tick(cmd.Context(), now))
		},
	}
	cmd.Flags().String("at", "", "evaluate windows at this RFC3339 instant instead of now")
	return cmd
}

func remindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Manage reminder subscriptions",
	}

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Create or replace a user's reminder for a contest",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			contestID, _ := cmd.Flags().GetUint64("contest")
			lead, _ := cmd.Flags().GetString("lead")
			a, cleanup, err := loadApp()
			if err != nil {
				return err
			}
			defer cleanup()
			item, err := a.Reminders.Set(cmd.Context(), user, contestID, models.LeadTime(lead))
			if err != nil {
				return err
			}
			return write(cmd, item)
		},
	}
	setCmd.Flags().String("user", "", "user id (required)")
	setCmd.Flags().Uint64("contest", 0, "contest id (required)")
	setCmd.Flags().String("lead", string(models.LeadTime30Min), "lead time: 30min|1hour")
	markRequired(setCmd, "user", "contest")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			a, cleanup, err := loadApp()
			if err != nil {
				return err
			}
			defer cleanup()
			items, err := a.Reminders.List(cmd.Context(), user)
			if err != nil {
				return err
			}
			return write(cmd, items)
		},
	}
	listCmd.Flags().String("user", "", "user id (required)")
	markRequired(listCmd, "user")

	cmd.AddCommand(setCmd, listCmd)
	return cmd
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage the user directory",
	}
	addCmd := &cobra.Command{
		Use:   "add <id> <email>",
		Short: "Create or update a user's email address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := strings.TrimSpace(args[1])
			if !strings.Contains(email, "@") {
				return fmt.Errorf("invalid email %q", email)
			}
			a, cleanup, err := loadApp()
			if err != nil {
				return err
			}
			defer cleanup()
			user := &models.User{ID: strings.TrimSpace(args[0]), Email: email}
			if err := a.Store.UpsertUser(cmd.Context(), user); err != nil {
				return err
			}
			return write(cmd, user)
		},
	}
	cmd.AddCommand(addCmd)
	return cmd
}

func parseClipboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse-clipboard <file>",
		Short: "Parse a copied CodeChef contest listing",
		Long:  `Parse text copied from the CodeChef contests page ("-" reads stdin). With --import the entries are reconciled into the store.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doImport, _ := cmd.Flags().GetBool("import")
			var raw []byte
			var err error
			if args[0] == "-" {
				raw, err = readAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			a, cleanup, err := loadApp()
			if err != nil {
				return err
			}
			defer cleanup()
			candidates, err := a.CodeChef.ParseClipboardText(string(raw))
			if err != nil {
				return err
			}
			if !doImport {
				return write(cmd, candidates)
			}
			return write(cmd, a.Reconciler.Reconcile(cmd.Context(), candidates))
		},
	}
	cmd.Flags().Bool("import", false, "reconcile the parsed contests into the store")
	return cmd
}

// markRequired panics on an unknown flag name, which is a wiring bug.
func markRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(fmt.Sprintf("%s: %v", cmd.Name(), err))
		}
	}
}
