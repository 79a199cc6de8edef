package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vthunder/plantbud/internal/journal"
	"github.com/vthunder/plantbud/internal/override"
	"github.com/vthunder/plantbud/internal/schedule"
	"github.com/vthunder/plantbud/internal/status"
	"github.com/vthunder/plantbud/internal/summarizer"
	"github.com/vthunder/plantbud/internal/types"
)

func newScheduleCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "schedule [hour]",
		Short: "Show the scheduled actuator states for an hour (default: now)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hour := time.Now().In(cfg.Location()).Hour()
			if len(args) == 1 {
				h, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("hour: %w", err)
				}
				hour = h
			}
			eng, err := schedule.New(cfg.Schedule)
			if err != nil {
				return err
			}
			decisions, err := eng.ScheduleFor(hour)
			if err != nil {
				return err
			}

			if jsonOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(decisions)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "%02d:00\n", hour)
			for _, d := range decisions {
				fmt.Fprintf(w, "  %s\t%s\t%s\n", d.Actuator, d.DesiredState, d.Reason)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func newLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect or edit the processed-image ledger",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the most recently processed images",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := db.LastProcessed(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", e.ProcessedAt.In(cfg.Location()).Format("2006-01-02 15:04"), e.ID)
			}
			return nil
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")

	mark := &cobra.Command{
		Use:   "mark <image>...",
		Short: "Mark images as processed so they are never diagnosed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			for _, id := range args {
				inserted, err := db.MarkProcessed(cmd.Context(), id, time.Now())
				if err != nil {
					return err
				}
				if !inserted {
					fmt.Fprintf(cmd.OutOrStdout(), "%s already processed\n", id)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s marked\n", id)
			}
			return nil
		},
	}

	cmd.AddCommand(list, mark)
	return cmd
}

func newStatusCmd() *cobra.Command {
	var entries int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print today's summary from the state database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			sum, err := summarizer.New(cfg.Thresholds)
			if err != nil {
				return err
			}

			now := time.Now().In(cfg.Location())
			midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
			snap := status.Snapshot{Day: now.Format("2006-01-02"), Memories: -1}

			reading, err := db.LatestDeviceReading(ctx)
			if err != nil {
				return err
			}
			if reading != nil {
				snap.Environment = reading.Environment()
				snap.Devices = reading.Devices
			}
			snap.Assessment = sum.Assess(snap.Environment)
			if snap.ImagesToday, err = db.CountAnalysesSince(ctx, midnight); err != nil {
				return err
			}
			if snap.CyclesToday, err = db.CountCyclesSince(ctx, midnight); err != nil {
				return err
			}
			if h, err := status.HostStats(ctx); err == nil {
				snap.Host = &h
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, status.DailySummary(snap))
			if reading != nil {
				fmt.Fprintf(out, "\nLast device reading: %s\n", reading.Timestamp.In(cfg.Location()).Format("2006-01-02 15:04"))
				for _, c := range reading.Comments {
					fmt.Fprintf(out, "  ! %s\n", c)
				}
			}

			if refl, err := db.LatestReflection(ctx); err == nil && refl != nil {
				fmt.Fprintf(out, "\nLast reflection (%s): %s\n", refl.Timestamp.In(cfg.Location()).Format("2006-01-02 15:04"), refl.AnalysisSummary)
				for _, a := range []types.Actuator{types.ActuatorLighting, types.ActuatorAeration} {
					if d, ok := refl.Decisions[a]; ok {
						fmt.Fprintf(out, "  %s %s (%s)\n", a, d.DesiredState, d.Reason)
					}
				}
				if refl.Outcome != types.OutcomeUnset {
					fmt.Fprintf(out, "  outcome: %s\n", refl.Outcome)
				}
			}

			if entries > 0 {
				recent, err := journal.New(cfg.StatePath).Recent(entries)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "\nJournal:")
				for _, e := range recent {
					fmt.Fprintf(out, "  %s  %-10s %s\n", e.Timestamp.In(cfg.Location()).Format("15:04:05"), e.Type, e.Summary)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&entries, "journal", "j", 10, "recent journal entries to show (0 hides)")
	return cmd
}

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage the override phrase table",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init <path>",
		Short: "Write the built-in phrase table as YAML for editing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := override.SaveRules(args[0], override.DefaultRules()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s; set override_rules to use it\n", args[0])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "check [text]",
		Short: "Show which overrides an action plan would trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := loadRules(cfg)
			if err != nil {
				return err
			}
			r, err := override.NewResolver(rules)
			if err != nil {
				return err
			}
			for _, a := range []types.Actuator{types.ActuatorLighting, types.ActuatorAeration} {
				m := r.Detect(a, args[0])
				switch {
				case m.Conflict:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: conflicting phrases, schedule kept\n", a)
				case m.Rule != nil:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: force %s (%q)\n", a, m.Intent, m.Rule.Phrase)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: no override\n", a)
				}
			}
			return nil
		},
	})
	return cmd
}
