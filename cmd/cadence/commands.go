package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kalambet/cadence/internal/api"
	"github.com/kalambet/cadence/internal/config"
	"github.com/kalambet/cadence/internal/schedule"
	"github.com/kalambet/cadence/internal/storage"
)

// parseCLITime accepts RFC 3339 or "YYYY-MM-DDTHH:MM" in local time.
func parseCLITime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use RFC 3339 or YYYY-MM-DDTHH:MM", s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// --- sessions ---

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage scheduled sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions in a time range (default: 30 days either side of now)",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listSessions(cmd.Context(), client, os.Stdout, from, to)
	},
}

func listSessions(ctx context.Context, c *apiClient, w io.Writer, from, to string) error {
	q := url.Values{}
	for key, raw := range map[string]string{"from": from, "to": to} {
		if raw == "" {
			continue
		}
		t, err := parseCLITime(raw)
		if err != nil {
			return err
		}
		q.Set(key, t.Format(time.RFC3339))
	}
	path := userPath("/sessions")
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	var sessions []schedule.Session
	if err := decodeJSON(resp, &sessions); err != nil {
		return err
	}
	if len(sessions) == 0 {
		writeLine(w, "No sessions found.")
		return nil
	}

	for _, s := range sessions {
		state := ""
		switch {
		case s.DeletedAt != nil:
			state = " (deleted)"
		case s.Completed:
			state = " (done)"
		}
		writeLine(w, "%s  %s  %-10s P%d  %s%s",
			colorize(colorCyan, shortID(s.ID)),
			formatSlot(s.StartTime, s.EndTime, time.Local),
			s.Type, s.Priority, s.Title, state)
	}
	return nil
}

var sessionsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Schedule a session",
	Long: `Schedule a session.

Examples:
  cadence sessions add --type DEEP_WORK --start 2026-05-11T07:00 --duration 90m
  cadence sessions add --type WORKOUT --start 2026-05-11T18:00 --title "Run" --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, _ := cmd.Flags().GetString("type")
		start, _ := cmd.Flags().GetString("start")
		duration, _ := cmd.Flags().GetDuration("duration")
		title, _ := cmd.Flags().GetString("title")
		priority, _ := cmd.Flags().GetInt("priority")
		force, _ := cmd.Flags().GetBool("force")

		if typ == "" || start == "" {
			return fmt.Errorf("--type and --start are required")
		}
		st, err := parseCLITime(start)
		if err != nil {
			return err
		}
		if duration <= 0 {
			return fmt.Errorf("--duration must be positive")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		s, err := addSession(cmd.Context(), client, typ, title, st, st.Add(duration), priority, force)
		if err != nil {
			return err
		}
		printSuccess("Scheduled %s %s (%s)", s.Type, formatSlot(s.StartTime, s.EndTime, time.Local), shortID(s.ID))
		return nil
	},
}

func addSession(ctx context.Context, c *apiClient, typ, title string, start, end time.Time, priority int, force bool) (schedule.Session, error) {
	body := map[string]any{
		"type":       strings.ToUpper(typ),
		"start_time": start.UTC(),
		"end_time":   end.UTC(),
	}
	if title != "" {
		body["title"] = title
	}
	if priority != 0 {
		body["priority"] = priority
	}
	path := userPath("/sessions")
	if force {
		path += "?force=true"
	}

	resp, err := c.post(ctx, path, body)
	if err != nil {
		return schedule.Session{}, err
	}
	var s schedule.Session
	if err := decodeJSON(resp, &s); err != nil {
		return schedule.Session{}, err
	}
	return s, nil
}

var sessionsCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Mark a session as completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), userPath("/sessions/%s/complete", pathEscape(args[0])), nil)
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Completed %s", args[0])
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), userPath("/sessions/%s", pathEscape(args[0])))
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Deleted %s", args[0])
		return nil
	},
}

func init() {
	sessionsListCmd.Flags().String("from", "", "range start (RFC 3339 or YYYY-MM-DDTHH:MM)")
	sessionsListCmd.Flags().String("to", "", "range end (RFC 3339 or YYYY-MM-DDTHH:MM)")

	sessionsAddCmd.Flags().String("type", "", "session type, e.g. DEEP_WORK")
	sessionsAddCmd.Flags().String("start", "", "start time (RFC 3339 or YYYY-MM-DDTHH:MM)")
	sessionsAddCmd.Flags().Duration("duration", time.Hour, "session length")
	sessionsAddCmd.Flags().String("title", "", "title (default: the type's label)")
	sessionsAddCmd.Flags().Int("priority", 0, "priority 1-5 (default 3)")
	sessionsAddCmd.Flags().Bool("force", false, "schedule even if it overlaps another session")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsAddCmd, sessionsCompleteCmd, sessionsDeleteCmd)
}

// --- availability ---

var availabilityCmd = &cobra.Command{
	Use:   "availability",
	Short: "Show or replace weekly availability",
}

var availabilityShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show weekly availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return showAvailability(cmd.Context(), client, os.Stdout)
	},
}

func showAvailability(ctx context.Context, c *apiClient, w io.Writer) error {
	resp, err := c.get(ctx, userPath("/availability"))
	if err != nil {
		return err
	}
	var wa schedule.WeeklyAvailability
	if err := decodeJSON(resp, &wa); err != nil {
		return err
	}
	if wa.Empty() {
		writeLine(w, "No availability set.")
		return nil
	}
	for d := time.Monday; ; d = (d + 1) % 7 {
		if windows := wa[d]; len(windows) > 0 {
			parts := make([]string, len(windows))
			for i, win := range windows {
				parts[i] = win.Start.String() + "-" + win.End.String()
			}
			writeLine(w, "%-10s %s", colorize(colorBold, d.String()), strings.Join(parts, ", "))
		}
		if d == time.Sunday {
			break
		}
	}
	return nil
}

var availabilitySetCmd = &cobra.Command{
	Use:   "set <file>",
	Short: "Replace weekly availability from a YAML or JSON file",
	Long: `Replace weekly availability from a YAML or JSON file mapping day names
to windows:

  MONDAY:
    - {start_time: "07:00", end_time: "09:00"}
  friday:
    - {start_time: "13:00", end_time: "17:00"}`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		wa, err := parseAvailabilityFile(data)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), userPath("/availability"), wa)
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Availability updated (%d days)", len(wa))
		return nil
	},
}

// parseAvailabilityFile reads day-name keyed windows. JSON is valid YAML.
func parseAvailabilityFile(data []byte) (schedule.WeeklyAvailability, error) {
	var raw map[string][]schedule.AvailabilityWindow
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing availability: %w", err)
	}
	wa, err := schedule.WeeklyFromNames(raw)
	if err != nil {
		return nil, err
	}
	if err := wa.Validate(); err != nil {
		return nil, err
	}
	return wa, nil
}

func init() {
	availabilityCmd.AddCommand(availabilityShowCmd, availabilitySetCmd)
}

// --- timezone ---

var timezoneCmd = &cobra.Command{
	Use:   "timezone [zone]",
	Short: "Show or set the user's IANA timezone",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var body struct {
			Timezone string `json:"timezone"`
		}
		if len(args) == 0 {
			resp, err := client.get(cmd.Context(), userPath("/timezone"))
			if err != nil {
				return err
			}
			if err := decodeJSON(resp, &body); err != nil {
				return err
			}
			fmt.Println(body.Timezone)
			return nil
		}

		body.Timezone = args[0]
		resp, err := client.put(cmd.Context(), userPath("/timezone"), body)
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, &body); err != nil {
			return err
		}
		printSuccess("Timezone set to %s", body.Timezone)
		return nil
	},
}

// --- suggest ---

type suggestFlags struct {
	days        int
	types       string
	minPriority int
	maxPriority int
	start       string
	timezone    string
}

func (f suggestFlags) query() string {
	q := url.Values{}
	if f.days > 0 {
		q.Set("look_ahead_days", strconv.Itoa(f.days))
	}
	if f.types != "" {
		q.Set("types", strings.ToUpper(strings.Join(splitList(f.types), ",")))
	}
	if f.minPriority > 0 {
		q.Set("min_priority", strconv.Itoa(f.minPriority))
	}
	if f.maxPriority > 0 {
		q.Set("max_priority", strconv.Itoa(f.maxPriority))
	}
	if f.start != "" {
		q.Set("start_date", f.start)
	}
	if f.timezone != "" {
		q.Set("timezone", f.timezone)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest time slots for upcoming sessions",
	Long: `Suggest time slots for upcoming sessions, based on recurring habits in
your history or, without history, on the middle of your free time.

Examples:
  cadence suggest
  cadence suggest --days 7 --types DEEP_WORK,READING
  cadence suggest --start 2026-06-01 --min-priority 4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range []string{"days", "min-priority", "max-priority"} {
			if v, _ := cmd.Flags().GetInt(name); cmd.Flags().Changed(name) && v < 1 {
				return fmt.Errorf("--%s must be positive", name)
			}
		}
		var f suggestFlags
		f.days, _ = cmd.Flags().GetInt("days")
		f.types, _ = cmd.Flags().GetString("types")
		f.minPriority, _ = cmd.Flags().GetInt("min-priority")
		f.maxPriority, _ = cmd.Flags().GetInt("max-priority")
		f.start, _ = cmd.Flags().GetString("start")
		f.timezone, _ = cmd.Flags().GetString("timezone")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return showSuggestions(cmd.Context(), client, os.Stdout, f)
	},
}

func showSuggestions(ctx context.Context, c *apiClient, w io.Writer, f suggestFlags) error {
	resp, err := c.get(ctx, userPath("/suggestions")+f.query())
	if err != nil {
		return err
	}
	var out api.SuggestionsResponse
	if err := decodeJSON(resp, &out); err != nil {
		return err
	}
	if len(out.Suggestions) == 0 {
		writeLine(w, "No suggestions. Set availability with 'cadence availability set'.")
		return nil
	}

	loc := loadLocation(out.Timezone)
	for i, s := range out.Suggestions {
		writeLine(w, "%s %s  %-10s P%d  %s  [score %d]",
			colorize(colorBold, fmt.Sprintf("%2d.", i+1)),
			formatSlot(s.StartTime, s.EndTime, loc),
			s.Type, s.Priority, s.Title, s.Score)
		for _, reason := range s.Reasons {
			writeLine(w, "      %s", reason)
		}
	}
	return nil
}

func init() {
	suggestCmd.Flags().Int("days", 0, "days to look ahead (default from config, max 30)")
	suggestCmd.Flags().String("types", "", "comma-separated session types")
	suggestCmd.Flags().Int("min-priority", 0, "lowest priority to suggest")
	suggestCmd.Flags().Int("max-priority", 0, "highest priority to suggest")
	suggestCmd.Flags().String("start", "", "first day to consider (YYYY-MM-DD or RFC 3339)")
	suggestCmd.Flags().String("timezone", "", "IANA timezone overriding the stored one")
}

// --- patterns ---

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Show recurring habits detected in recent history",
	RunE: func(cmd *cobra.Command, args []string) error {
		tz, _ := cmd.Flags().GetString("timezone")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return showPatterns(cmd.Context(), client, os.Stdout, tz)
	},
}

func showPatterns(ctx context.Context, c *apiClient, w io.Writer, tz string) error {
	path := userPath("/patterns")
	if tz != "" {
		path += "?timezone=" + url.QueryEscape(tz)
	}
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	var out api.PatternsResponse
	if err := decodeJSON(resp, &out); err != nil {
		return err
	}
	if len(out.Patterns) == 0 {
		writeLine(w, "No recurring patterns yet.")
		return nil
	}

	writeLine(w, "Times in %s", out.Timezone)
	for _, p := range out.Patterns {
		writeLine(w, "%-9s %02d:%02d  %-10s %3dm  seen %dx  success %3.0f%%  %s",
			p.DayOfWeek, p.Hour, p.Minute, p.Type, p.DurationMinutes,
			p.Frequency, p.SuccessRate*100, p.Title)
	}
	return nil
}

func init() {
	patternsCmd.Flags().String("timezone", "", "IANA timezone overriding the stored one")
}

// --- conflicts ---

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Check whether a time range overlaps scheduled sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		start, _ := cmd.Flags().GetString("start")
		end, _ := cmd.Flags().GetString("end")
		if start == "" || end == "" {
			return fmt.Errorf("--start and --end are required")
		}
		st, err := parseCLITime(start)
		if err != nil {
			return err
		}
		et, err := parseCLITime(end)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), userPath("/conflicts"), api.ConflictRequest{StartTime: st, EndTime: et})
		if err != nil {
			return err
		}
		var out api.ConflictResponse
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		if !out.HasConflict {
			printSuccess("No conflicts")
			return nil
		}
		printWarning("%d conflicting session(s)", len(out.Conflicts))
		for _, s := range out.Conflicts {
			fmt.Printf("  %s  %s  %s\n", shortID(s.ID), formatSlot(s.StartTime, s.EndTime, time.Local), s.Title)
		}
		return nil
	},
}

func init() {
	conflictsCmd.Flags().String("start", "", "range start (RFC 3339 or YYYY-MM-DDTHH:MM)")
	conflictsCmd.Flags().String("end", "", "range end (RFC 3339 or YYYY-MM-DDTHH:MM)")
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import timezone, availability and sessions from a YAML file",
	Long: `Import timezone, availability and sessions from a YAML file. The import
runs in the background; use --wait to block until it finishes.

Example file:
  timezone: Europe/Berlin
  availability:
    MONDAY:
      - {start_time: "07:00", end_time: "09:00"}
  sessions:
    - type: DEEP_WORK
      start_time: 2026-04-20T07:00:00+02:00
      end_time: 2026-04-20T08:00:00+02:00
      completed: true`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, _ := cmd.Flags().GetBool("wait")
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		id, err := queueImport(cmd.Context(), client, data)
		if err != nil {
			return err
		}
		printSuccess("Queued import %s from %s", id, filepath.Base(args[0]))
		if !wait {
			return nil
		}

		job, err := waitForJob(cmd.Context(), client, id, 500*time.Millisecond)
		if err != nil {
			return err
		}
		return printJob(os.Stdout, job)
	},
}

func queueImport(ctx context.Context, c *apiClient, document []byte) (string, error) {
	resp, err := c.post(ctx, "/import", api.ImportRequest{UserID: userID, Document: string(document)})
	if err != nil {
		return "", err
	}
	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		return "", err
	}
	return result["id"], nil
}

func getJob(ctx context.Context, c *apiClient, id string) (api.JobResponse, error) {
	resp, err := c.get(ctx, "/jobs/"+pathEscape(id))
	if err != nil {
		return api.JobResponse{}, err
	}
	var job api.JobResponse
	if err := decodeJSON(resp, &job); err != nil {
		return api.JobResponse{}, err
	}
	return job, nil
}

// waitForJob polls until the job completes or fails for good. A failed job
// that still has attempts left is pending again and keeps being polled.
func waitForJob(ctx context.Context, c *apiClient, id string, every time.Duration) (api.JobResponse, error) {
	for {
		job, err := getJob(ctx, c, id)
		if err != nil {
			return api.JobResponse{}, err
		}
		if job.Status == storage.JobCompleted || job.Status == storage.JobFailed {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return api.JobResponse{}, ctx.Err()
		case <-time.After(every):
		}
	}
}

func printJob(w io.Writer, job api.JobResponse) error {
	writeLine(w, "%s  %s  attempts %d/%d", colorize(colorCyan, job.ID), job.Status, job.Attempts, job.MaxAttempts)
	if job.LastError != "" {
		writeLine(w, "  last error: %s", job.LastError)
	}
	if len(job.Result) == 0 {
		return nil
	}
	var result map[string]any
	if err := json.Unmarshal(job.Result, &result); err != nil {
		return fmt.Errorf("decoding job result: %w", err)
	}
	keys := make([]string, 0, len(result))
	for k := range result {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeLine(w, "  %s: %v", k, result[k])
	}
	return nil
}

var jobCmd = &cobra.Command{
	Use:   "job <id>",
	Short: "Show the status of an import job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		job, err := getJob(cmd.Context(), client, args[0])
		if err != nil {
			return err
		}
		return printJob(os.Stdout, job)
	},
}

func init() {
	importCmd.Flags().Bool("wait", false, "wait for the import to finish and print its result")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "$"+k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
}
