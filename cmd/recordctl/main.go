// Command recordctl inspects and edits records kept by the records package,
// and can host a long-running store with its reconciliation loop.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/creastat/records/lifecycle"
	"pkt.systems/pslog"
)

func main() {
	os.Exit(submain(context.Background()))
}

func submain(ctx context.Context) int {
	baseLogger := pslog.LoggerFromEnv(
		pslog.WithEnvPrefix("RECORDS_LOG_"),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeStructured, MinLevel: pslog.InfoLevel}),
		pslog.WithEnvWriter(os.Stderr),
	).With("app", "recordctl")

	ctx, stop := lifecycle.NotifyContext(ctx)
	defer stop()

	cmd := newRootCommand(baseLogger)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "%s\n", err)
		}
		return 1
	}
	return 0
}
