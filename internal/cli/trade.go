package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	app "papertrade/internal"
	"papertrade/internal/domain"
)

// tradeCmd is the buy or sell command, depending on kind.
type tradeCmd struct {
	kind string
}

func (c *tradeCmd) Name() string { return c.kind }
func (c *tradeCmd) Synopsis() string {
	return c.kind + " an asset at the current market price"
}
func (c *tradeCmd) Usage() string {
	return fmt.Sprintf(`%s <asset> <quantity>

  Executes a %s order at the current exchange price. The asset is a
  symbol (BTC) or a name (bitcoin).
`, c.kind, c.kind)
}

func (*tradeCmd) SetFlags(*flag.FlagSet) {}

func (c *tradeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "%s takes an asset and a quantity\n", c.kind)
		return subcommands.ExitUsageError
	}
	asset := f.Arg(0)
	quantity, err := parseAmount(f.Arg(1))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	return run(ctx, func(a *app.Application) error {
		exec := a.PortfolioService.Buy
		if c.kind == "sell" {
			exec = a.PortfolioService.Sell
		}
		record, err := exec(ctx, asset, quantity)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, record)
		fmt.Fprintf(stdout, "Balance %s\n", domain.FormatUSD(a.PortfolioService.GetBalance()))
		return nil
	})
}
