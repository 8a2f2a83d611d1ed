// ABOUTME: CLI commands that act on events directly without the HTTP server.
// ABOUTME: Covers add, list, update, move, delete, grid, export, seed, and reset.

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389/monthcal/internal/event"
	"github.com/2389/monthcal/internal/grid"
	"github.com/2389/monthcal/internal/icsexport"
	"github.com/2389/monthcal/internal/jsonfile"
	"github.com/2389/monthcal/internal/schedule"
	"github.com/2389/monthcal/internal/seed"
)

// draftFlags binds the editable event fields.
type draftFlags struct {
	name, date, start, end, description, category string
}

func (d *draftFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&d.name, "name", "n", "", "Event name")
	f.StringVar(&d.date, "date", "", "Date (YYYY-MM-DD)")
	f.StringVarP(&d.start, "start", "s", "", "Start time (HH:MM)")
	f.StringVarP(&d.end, "end", "e", "", "End time (HH:MM)")
	f.StringVar(&d.description, "description", "", "Description")
	f.StringVarP(&d.category, "category", "c", "", "Category: default, work, personal, other")
}

// apply overwrites the fields of base whose flags were set.
func (d *draftFlags) apply(cmd *cobra.Command, base event.Draft) event.Draft {
	f := cmd.Flags()
	if f.Changed("name") {
		base.Name = d.name
	}
	if f.Changed("date") {
		base.Date = d.date
	}
	if f.Changed("start") {
		base.StartTime = d.start
	}
	if f.Changed("end") {
		base.EndTime = d.end
	}
	if f.Changed("description") {
		base.Description = d.description
	}
	if f.Changed("category") {
		base.Category = d.category
	}
	return base
}

func newAddCmd(flags *globalFlags) *cobra.Command {
	d := &draftFlags{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an event",
		Long: `Add an event. The date defaults to today and the category to default.

Example:
  monthcal add --name Standup --date 2024-06-10 --start 09:00 --end 09:30 --category work`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			draft := d.apply(cmd, event.NewDraft(a.ctrl.Today()))
			e, err := a.ctrl.AddEvent(cmd.Context(), draft)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", describe(e))
			return nil
		},
	}
	d.register(cmd)
	return cmd
}

func newListCmd(flags *globalFlags) *cobra.Command {
	var query, day string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			var events []event.Event
			if day != "" {
				date, err := event.ParseDate(day)
				if err != nil {
					return err
				}
				events = a.ctrl.EventsOn(date, query)
			} else {
				events = a.ctrl.Search(query)
			}

			if asJSON {
				data, err := schedule.MarshalExport(events)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			return printEvents(cmd.OutOrStdout(), events)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Case-insensitive name/description filter")
	cmd.Flags().StringVar(&day, "date", "", "Only events on this date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newUpdateCmd(flags *globalFlags) *cobra.Command {
	d := &draftFlags{}
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of an event; unset flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			existing, err := a.ctrl.Event(id)
			if err != nil {
				return err
			}
			e, err := a.ctrl.UpdateEvent(cmd.Context(), id, d.apply(cmd, existing.Draft()))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", describe(e))
			return nil
		},
	}
	d.register(cmd)
	return cmd
}

func newMoveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <date>",
		Short: "Move an event to another day, keeping its times",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			date, err := event.ParseDate(args[1])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			e, err := a.ctrl.MoveEvent(cmd.Context(), id, date)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s\n", describe(e))
			return nil
		},
	}
}

func newDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.ctrl.DeleteEvent(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d\n", id)
			return nil
		},
	}
}

func newGridCmd(flags *globalFlags) *cobra.Command {
	var query string
	return withQuery(&cobra.Command{
		Use:   "grid [year month]",
		Short: "Print a month grid; days with events are marked with *",
		Args:  monthArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			today := a.ctrl.Today()
			ref, err := parseMonthArgs(args, today)
			if err != nil {
				return err
			}
			cells := grid.CellsForMonth(ref, a.ctrl.Search(query), today, today)
			renderGrid(cmd.OutOrStdout(), grid.BuildMonth(ref), cells)
			return nil
		},
	}, &query)
}

func newExportCmd(flags *globalFlags) *cobra.Command {
	var format, dir string
	cmd := &cobra.Command{
		Use:   "export [year month]",
		Short: "Export one month of events as JSON or iCalendar",
		Long: `Export the events of one month.

With --out the file is written to that directory as events_<year>_<month>.json
(or .ics). Without it the export is printed to stdout.`,
		Args: monthArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "ics" {
				return fmt.Errorf("format must be json or ics, got %q", format)
			}
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ref, err := parseMonthArgs(args, a.ctrl.Today())
			if err != nil {
				return err
			}
			exp, err := a.ctrl.Export(ref.Year, ref.Month)
			if err != nil {
				return err
			}
			if format == "ics" {
				exp = icsexport.FromExport(exp, time.Now())
			}

			if dir == "" {
				_, err := cmd.OutOrStdout().Write(exp.Data)
				fmt.Fprintln(cmd.OutOrStdout())
				return err
			}
			path, err := jsonfile.WriteExport(dir, exp)
			if err != nil {
				return err
			}
			note := schedule.NotificationFor(schedule.IntentExport, nil)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d events written to %s\n", note.Title, len(exp.Events), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Export format: json or ics")
	cmd.Flags().StringVarP(&dir, "out", "o", "", "Directory to write the export file into")
	return cmd
}

func newSeedCmd(flags *globalFlags) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "seed [year month]",
		Short: "Fill a month with sample events",
		Long: `Add sample events to a month (the current month by default).

AI-Powered Generation:
  Set OPENAI_API_KEY to generate realistic events with OpenAI.
  Falls back to static sample events if no API key is provided.

Events that would overlap an existing booking are skipped.
Use 'monthcal reset' to clear events before reseeding.`,
		Args: monthArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ref, err := parseMonthArgs(args, a.ctrl.Today())
			if err != nil {
				return err
			}
			return seedMonth(cmd, a, ref, count)
		},
	}
	cmd.Flags().IntVar(&count, "count", 12, "Number of events to generate")
	return cmd
}

func newResetCmd(flags *globalFlags) *cobra.Command {
	var count int
	var empty bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every event and reseed the current month",
		Long: `Delete every stored event, then seed the current month with fresh sample data.

Warning: This permanently deletes all events in the configured storage!`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			removed := len(a.ctrl.Events())
			if err := a.ctrl.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d events\n", removed)
			if empty {
				return nil
			}
			return seedMonth(cmd, a, a.ctrl.Today(), count)
		},
	}
	cmd.Flags().IntVar(&count, "count", 12, "Number of events to generate after the reset")
	cmd.Flags().BoolVar(&empty, "empty", false, "Do not reseed after deleting")
	return cmd
}

func seedMonth(cmd *cobra.Command, a *app, ref event.Date, count int) error {
	gen := seed.NewGenerator(a.cfg.OpenAI.APIKey, a.cfg.OpenAI.Model, a.logger)
	drafts, err := gen.Generate(cmd.Context(), ref.Year, ref.Month, count)
	if err != nil {
		return err
	}

	added, skipped := 0, 0
	for _, d := range drafts {
		if _, err := a.ctrl.AddEvent(cmd.Context(), d); err != nil {
			if schedule.IsStorageError(err) {
				return err
			}
			a.logger.Debug("seed event skipped", "name", d.Name, "date", d.Date, "err", err)
			skipped++
			continue
		}
		added++
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeding complete! Added %d events to %s (%d skipped)\n",
		added, grid.BuildMonth(ref).Title(), skipped)
	return nil
}

func withQuery(cmd *cobra.Command, query *string) *cobra.Command {
	cmd.Flags().StringVarP(query, "query", "q", "", "Case-insensitive name/description filter")
	return cmd
}

func monthArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 0 && len(args) != 2 {
		return fmt.Errorf("expected no arguments or <year> <month>, got %d", len(args))
	}
	return nil
}

// parseMonthArgs returns the first day of the month named by args, or of
// today's month when args is empty.
func parseMonthArgs(args []string, today event.Date) (event.Date, error) {
	if len(args) == 0 {
		return event.NewDate(today.Year, today.Month, 1), nil
	}
	year, yerr := strconv.Atoi(args[0])
	month, merr := strconv.Atoi(args[1])
	if yerr != nil || merr != nil || month < 1 || month > 12 || year < 1 || year > 9999 {
		return event.Date{}, fmt.Errorf("invalid month %q %q: want <year> <1-12>", args[0], args[1])
	}
	return event.NewDate(year, time.Month(month), 1), nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid event id %q", s)
	}
	return id, nil
}

func describe(e event.Event) string {
	return fmt.Sprintf("#%d %q on %s %s-%s", e.ID, e.Name, e.Date, e.StartTime, e.EndTime)
}

func printEvents(w io.Writer, events []event.Event) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTIME\tCATEGORY\tNAME")
	for _, e := range events {
		fmt.Fprintf(tw, "%d\t%s\t%s-%s\t%s\t%s\n", e.ID, e.Date, e.StartTime, e.EndTime, e.Category, e.Name)
	}
	return tw.Flush()
}

// renderGrid prints the month as a seven-column text calendar.
func renderGrid(w io.Writer, m grid.Month, cells []grid.Cell) {
	fmt.Fprintln(w, m.Title())
	header := make([]string, 0, grid.DaysPerWeek)
	for _, name := range grid.WeekdayNames {
		header = append(header, fmt.Sprintf("%-4s", name))
	}
	fmt.Fprintln(w, strings.TrimRight(strings.Join(header, " "), " "))
	for _, week := range grid.Weeks(cells) {
		cols := make([]string, 0, grid.DaysPerWeek)
		for _, c := range week {
			cols = append(cols, cellLabel(c))
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cols, " "), " "))
	}
}

// cellLabel is four columns wide: the day, "*" when it has events, then "<"
// when it is today.
func cellLabel(c grid.Cell) string {
	if c.Empty {
		return "    "
	}
	events, today := " ", " "
	if c.HasEvents() {
		events = "*"
	}
	if c.IsToday {
		today = "<"
	}
	return fmt.Sprintf("%2d%s%s", c.Day, events, today)
}
