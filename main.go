package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exitOnError(err)
	}
}

// exitCode used for any failed command; partial-failure sync runs also exit 1.
const exitFailure = 1

func exitOnError(err error) {
	os.Stderr.WriteString("Error: " + err.Error() + "\n")
	os.Exit(exitFailure)
}
