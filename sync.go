package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/tasksync/internal/sync"
)

func newSyncCmd() *cobra.Command {
	var flagDryRun bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one bidirectional sync pass",
		Long: `Run one full sync pass between the Device and the Host.

Reconciles categories, pairs tasks, resolves conflicts, and applies the
resulting changes to both sides. With --dry-run, planned task actions are
reported but nothing is modified.`,
		RunE: runSync,
	}

	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "report planned actions without applying them")

	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	unlock, err := acquireLock(resolvedCfg.State.DBPath)
	if err != nil {
		return err
	}
	defer unlock()

	store, err := openStore(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	dev, err := openDevice(logger)
	if err != nil {
		return err
	}
	defer dev.Close()

	hst, err := openHost(logger)
	if err != nil {
		return err
	}

	engine := sync.NewEngine(dev, hst, store, logger, sync.Options{
		Strategy:        sync.ConflictStrategy(resolvedCfg.Sync.ConflictResolution),
		ConflictWindow:  resolvedCfg.ConflictWindow(),
		SyncCompleted:   resolvedCfg.Sync.SyncCompletedTasks,
		CompletedMaxAge: resolvedCfg.CompletedMaxAge(),
		DedupeRepeating: resolvedCfg.Sync.DedupeRepeatingTasks,
		DryRun:          resolvedCfg.Sync.DryRun,
	})

	res, err := engine.Run(cmd.Context())
	if err != nil {
		return err
	}

	if flagJSON {
		if err := printResultJSON(res); err != nil {
			return err
		}
	} else {
		printResultText(res)
	}

	if len(res.Errors) > 0 {
		return fmt.Errorf("sync completed with %d errors", len(res.Errors))
	}

	return nil
}

// resultJSON is the stable JSON shape of a sync summary.
type resultJSON struct {
	StartedAt    string         `json:"started_at"`
	CompletedAt  string         `json:"completed_at"`
	DryRun       bool           `json:"dry_run"`
	HostToDevice map[string]int `json:"host_to_device"`
	DeviceToHost map[string]int `json:"device_to_host"`
	Conflicts    int            `json:"conflicts_resolved"`
	NoChange     int            `json:"no_change"`
	Deduped      int            `json:"deduplicated"`
	SkippedOld   int            `json:"skipped_old_completed"`
	Errors       []string       `json:"errors"`
}

func printResultJSON(res *sync.Result) error {
	out := resultJSON{
		StartedAt:   res.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		CompletedAt: res.CompletedAt.Format("2006-01-02T15:04:05Z07:00"),
		DryRun:      res.DryRun,
		HostToDevice: map[string]int{
			"created": res.HostToDeviceCreated,
			"updated": res.HostToDeviceUpdated,
			"deleted": res.HostToDeviceDeleted,
		},
		DeviceToHost: map[string]int{
			"created": res.DeviceToHostCreated,
			"updated": res.DeviceToHostUpdated,
			"deleted": res.DeviceToHostDeleted,
		},
		Conflicts:  res.ConflictsResolved,
		NoChange:   res.NoChange,
		Deduped:    res.Deduped,
		SkippedOld: res.SkippedOldCompleted,
		Errors:     res.Errors,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

func printResultText(res *sync.Result) {
	label := "Sync completed"
	if res.DryRun {
		label = "Dry run completed"
	}

	statusf(flagQuiet, "%s in %s\n", label, res.CompletedAt.Sub(res.StartedAt).Round(timeRounding))
	statusf(flagQuiet, "Host → Device: %d created, %d updated, %d deleted\n",
		res.HostToDeviceCreated, res.HostToDeviceUpdated, res.HostToDeviceDeleted)
	statusf(flagQuiet, "Device → Host: %d created, %d updated, %d deleted\n",
		res.DeviceToHostCreated, res.DeviceToHostUpdated, res.DeviceToHostDeleted)
	statusf(flagQuiet, "Conflicts resolved: %d\n", res.ConflictsResolved)
	statusf(flagQuiet, "Unchanged: %d\n", res.NoChange)

	if res.Deduped > 0 {
		statusf(flagQuiet, "Repeating duplicates collapsed: %d\n", res.Deduped)
	}

	if res.SkippedOldCompleted > 0 {
		statusf(flagQuiet, "Old completed tasks skipped: %d\n", res.SkippedOldCompleted)
	}

	for _, e := range res.Errors {
		fmt.Fprintf(os.Stderr, "Error: %s\n", e)
	}
}
