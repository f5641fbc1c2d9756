package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lohun/driverlog/internal/setup"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Run one-shot service setup and exit",
	Long: `Setup provisions everything the server needs, in order: it verifies
the database is reachable, applies the schema migrations, creates the admin
account from DRIVERLOG_ADMIN_USERNAME / DRIVERLOG_ADMIN_EMAIL /
DRIVERLOG_ADMIN_PASSWORD (skipped when unset; the variables are cleared
afterwards either way), provisions the trip-event stream, and collects the
static assets.

The command runs once, prints a JSON result to stdout, and exits 0 on
success or non-zero on failure.`,
	RunE: runSetup,
}

func runSetup(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Setup.Timeout)
	defer cancel()

	defer app.shutdownTelemetry()
	defer app.pool.Close()

	slog.Info("starting setup")

	result, err := app.provisioner.Run(ctx)
	if err != nil {
		printResult("error", err.Error())
		return fmt.Errorf("setup failed: %w", err)
	}

	printSetupResult(result)

	if result.Status == setup.StatusError {
		return fmt.Errorf("setup completed with errors")
	}

	slog.Info("setup completed successfully")
	return nil
}

func printSetupResult(result *setup.SetupResult) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stdout, `{"status":%q}`+"\n", result.Status)
	}
}

func printResult(status, errMsg string) {
	result := map[string]string{"status": status}
	if errMsg != "" {
		result["error"] = errMsg
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		// Fallback to plain text if JSON encoding somehow fails.
		fmt.Fprintf(os.Stdout, `{"status":%q}`+"\n", status)
	}
}
