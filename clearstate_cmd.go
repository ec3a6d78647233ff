package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newClearStateCmd() *cobra.Command {
	var flagYes bool

	cmd := &cobra.Command{
		Use:   "clear-state",
		Short: "Delete all task pairings and category mappings",
		Long: `Remove every sync record and category mapping from the state database.
The audit log is kept. The next sync re-pairs tasks by title, so identical
tasks relink cleanly, but diverged pairs may be treated as new tasks.

Destructive — requires --yes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !flagYes {
				return fmt.Errorf("clear-state is destructive; pass --yes to confirm")
			}

			return runClearState(cmd)
		},
	}

	cmd.Flags().BoolVar(&flagYes, "yes", false, "confirm clearing the sync state")

	return cmd
}

func runClearState(cmd *cobra.Command) error {
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

	if err := store.ClearAll(cmd.Context()); err != nil {
		return err
	}

	statusf(flagQuiet, "Sync state cleared. The next sync will re-pair tasks by title.\n")

	return nil
}
