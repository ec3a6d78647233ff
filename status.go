package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// recentLogLimit is how many audit entries status shows.
const recentLogLimit = 10

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pairing statistics and recent sync activity",
		Long: `Display the current sync state: how many task pairings exist, how they
are distributed across the two stores, and the most recent audit entries.
Reads only the local state database — neither store is contacted.`,
		RunE: runStatus,
	}
}

// statusReport is the JSON shape of the status output.
type statusReport struct {
	StateDB    string          `json:"state_db"`
	Total      int             `json:"total_records"`
	Both       int             `json:"paired_both"`
	HostOnly   int             `json:"host_only"`
	DeviceOnly int             `json:"device_only"`
	LastSync   string          `json:"last_sync,omitempty"`
	RecentLogs []statusLogLine `json:"recent_activity"`
}

type statusLogLine struct {
	Time   string `json:"time"`
	Action string `json:"action"`
	SyncID string `json:"sync_id,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	store, err := openStore(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return err
	}

	logs, err := store.RecentLogs(cmd.Context(), recentLogLimit)
	if err != nil {
		return err
	}

	report := statusReport{
		StateDB:    resolvedCfg.State.DBPath,
		Total:      stats.Total,
		Both:       stats.Both,
		HostOnly:   stats.HostOnly,
		DeviceOnly: stats.DeviceOnly,
	}

	for _, l := range logs {
		report.RecentLogs = append(report.RecentLogs, statusLogLine{
			Time:   formatUnix(l.Timestamp),
			Action: l.Action,
			SyncID: l.SyncID,
		})

		if l.Action == "sync_complete" && report.LastSync == "" {
			report.LastSync = formatUnix(l.Timestamp)
		}
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}

		return nil
	}

	printStatusText(report)

	return nil
}

func printStatusText(report statusReport) {
	fmt.Printf("State database: %s\n", report.StateDB)
	fmt.Printf("Task pairings:  %d total (%d on both sides, %d host-only, %d device-only)\n",
		report.Total, report.Both, report.HostOnly, report.DeviceOnly)

	if report.LastSync != "" {
		fmt.Printf("Last sync:      %s\n", report.LastSync)
	}

	if len(report.RecentLogs) == 0 {
		return
	}

	fmt.Println("\nRecent activity:")

	rows := make([][]string, 0, len(report.RecentLogs))
	for _, l := range report.RecentLogs {
		rows = append(rows, []string{l.Time, l.Action, shortSyncID(l.SyncID)})
	}

	printTable(os.Stdout, []string{"TIME", "ACTION", "SYNC ID"}, rows)
}

// shortSyncID truncates a sync ID for table display.
func shortSyncID(id string) string {
	const short = 8
	if len(id) > short {
		return id[:short]
	}

	return id
}
