// Package cli implements the papertrade command line subcommands.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/google/subcommands"

	app "papertrade/internal"
	"papertrade/internal/config"
	"papertrade/internal/util"
)

// Register the subcommands.
func Register(c *subcommands.Commander) {
	c.Register(&balanceCmd{}, "portfolio")
	c.Register(&holdingsCmd{}, "portfolio")
	c.Register(&historyCmd{}, "portfolio")
	c.Register(&resetCmd{}, "portfolio")

	c.Register(&depositCmd{}, "funds")
	c.Register(&setBalanceCmd{}, "funds")

	c.Register(&tradeCmd{kind: "buy"}, "trading")
	c.Register(&tradeCmd{kind: "sell"}, "trading")

	c.Register(&quoteCmd{}, "market")
	c.Register(&watchCmd{}, "market")
}

var configFile = flag.String("config", os.Getenv(config.ConfigFileEnv), "Path to a configuration file")
var verbose = flag.Bool("v", false, "Log at debug level instead of warn")

// stdout receives command output; color.Output handles Windows consoles.
var stdout io.Writer = color.Output

var (
	gain = color.New(color.FgGreen)
	loss = color.New(color.FgRed)
	head = color.New(color.FgYellow, color.Bold)
	dim  = color.New(color.FgCyan)
)

// openApp loads configuration and initializes the application for one command.
func openApp(ctx context.Context) (*app.Application, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}
	cfg.Logger.Level = "warn"
	if *verbose {
		cfg.Logger.Level = "debug"
	}
	cfg.Logger.Output = "stdout"

	application := app.NewApplication()
	if err := application.InitializeWithConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return application, nil
}

// run opens the application, hands it to fn and shuts it down afterwards.
func run(ctx context.Context, fn func(*app.Application) error) subcommands.ExitStatus {
	application, err := openApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening portfolio: %v\n", err)
		return subcommands.ExitFailure
	}
	defer func() {
		if err := application.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing portfolio: %v\n", err)
		}
	}()

	if err := fn(application); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// parseAmount parses a strictly positive number.
func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number: %w", s, util.ErrInvalidInput)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%q must be positive: %w", s, util.ErrInvalidInput)
	}
	return v, nil
}

// signed colors v by its sign.
func signed(v float64, text string) string {
	switch {
	case v > 0:
		return gain.Sprint("+" + text)
	case v < 0:
		return loss.Sprint(text)
	default:
		return text
	}
}
