package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/tasksync/internal/sync"
)

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Show categories, lists, and their mappings",
		Long:  "List the Device categories, the Host lists, and the recorded mappings\nbetween them. Both stores are queried; nothing is modified.",
		RunE:  runCategories,
	}
}

// categoryReport pairs both stores' category namespaces with the recorded
// mappings for display.
type categoryReport struct {
	DeviceCategories []string          `json:"device_categories"`
	HostLists        []string          `json:"host_lists"`
	Mappings         []categoryMapping `json:"mappings"`
}

type categoryMapping struct {
	Name     string `json:"name"`
	DeviceID string `json:"device_id"`
	HostID   string `json:"host_id"`
}

func runCategories(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

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

	var deviceCats, hostLists []sync.Category

	g, ctx := errgroup.WithContext(cmd.Context())

	g.Go(func() error {
		var err error
		deviceCats, err = dev.ListCategories(ctx)
		return err
	})

	g.Go(func() error {
		var err error
		hostLists, err = hst.ListLists(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	mappings, err := store.AllMappings(cmd.Context())
	if err != nil {
		return err
	}

	report := categoryReport{}

	for _, c := range deviceCats {
		report.DeviceCategories = append(report.DeviceCategories, c.Name)
	}

	for _, l := range hostLists {
		report.HostLists = append(report.HostLists, l.Name)
	}

	sort.Strings(report.DeviceCategories)
	sort.Strings(report.HostLists)

	for _, m := range mappings {
		report.Mappings = append(report.Mappings, categoryMapping{
			Name:     m.Name,
			DeviceID: m.DeviceID,
			HostID:   m.HostID,
		})
	}

	sort.Slice(report.Mappings, func(i, j int) bool {
		return report.Mappings[i].Name < report.Mappings[j].Name
	})

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}

		return nil
	}

	fmt.Printf("Device categories: %d\n", len(report.DeviceCategories))
	for _, name := range report.DeviceCategories {
		fmt.Printf("  %s\n", name)
	}

	fmt.Printf("Host lists: %d\n", len(report.HostLists))
	for _, name := range report.HostLists {
		fmt.Printf("  %s\n", name)
	}

	if len(report.Mappings) == 0 {
		fmt.Println("No mappings recorded yet — run 'tasksync sync' to bootstrap them.")
		return nil
	}

	fmt.Println("\nMappings:")

	rows := make([][]string, 0, len(report.Mappings))
	for _, m := range report.Mappings {
		rows = append(rows, []string{m.Name, m.DeviceID, m.HostID})
	}

	printTable(os.Stdout, []string{"NAME", "DEVICE ID", "HOST ID"}, rows)

	return nil
}
