package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test connectivity to the Device database and the Host helper",
		Long: `Check that both stores are reachable with the current configuration.
The Device database and the Host helper are probed in parallel.`,
		RunE: runTest,
	}
}

func runTest(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	dev, err := openDevice(logger)
	if err != nil {
		return err
	}
	defer dev.Close()

	hst, err := openHost(logger)
	if err != nil {
		return err
	}

	var deviceOK, hostOK bool

	// Both probes are independent; run them concurrently. The engine itself
	// stays serial — this is the one place parallelism buys anything.
	g, ctx := errgroup.WithContext(cmd.Context())

	g.Go(func() error {
		deviceOK = dev.TestConnection(ctx)
		return nil
	})

	g.Go(func() error {
		hostOK = hst.TestConnection(ctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	statusf(flagQuiet, "Device database: %s\n", okLabel(deviceOK))
	statusf(flagQuiet, "Host helper:     %s\n", okLabel(hostOK))

	if !deviceOK || !hostOK {
		return fmt.Errorf("connectivity test failed")
	}

	return nil
}

func okLabel(ok bool) string {
	if ok {
		return "ok"
	}

	return "FAILED"
}
