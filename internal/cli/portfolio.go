package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	app "papertrade/internal"
	"papertrade/internal/domain"
)

type balanceCmd struct {
	cached bool
}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "display cash, investments and total value" }
func (*balanceCmd) Usage() string {
	return `balance [-cached]

  Displays the cash balance, the value of all holdings and the unrealized
  profit or loss. Prices are fetched unless -cached is set.
`
}

func (c *balanceCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.cached, "cached", false, "use last known prices only")
}

func (c *balanceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(a *app.Application) error {
		svc := a.PortfolioService

		var investments, pl float64
		if c.cached {
			investments = svc.GetInvestmentsValueCached()
		} else {
			investments = svc.GetInvestmentsValue(ctx)
		}
		pl = svc.GetProfitLoss(ctx)
		balance := svc.GetBalance()

		head.Fprintln(stdout, "*** Portfolio ***")
		fmt.Fprintf(stdout, "Cash:        %s\n", domain.FormatUSD(balance))
		fmt.Fprintf(stdout, "Investments: %s\n", domain.FormatUSD(investments))
		fmt.Fprintf(stdout, "Total:       %s\n", domain.FormatUSD(balance+investments))
		fmt.Fprintf(stdout, "P/L:         %s\n", signed(pl, domain.FormatUSD(pl)))
		return nil
	})
}

type holdingsCmd struct{}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "display held assets with current prices" }
func (*holdingsCmd) Usage() string {
	return `holdings

  Lists every holding with its quantity, average cost, current price and
  unrealized profit or loss.
`
}

func (*holdingsCmd) SetFlags(*flag.FlagSet) {}

func (*holdingsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(a *app.Application) error {
		holdings := a.PortfolioService.ListHoldings()
		if len(holdings) == 0 {
			fmt.Fprintln(stdout, "No holdings.")
			return nil
		}

		ids := make([]string, len(holdings))
		for i, h := range holdings {
			ids[i] = h.AssetID
		}
		quotes := a.Feed.FetchMarketData(ctx, ids)

		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "Asset\tQuantity\tAvg Cost\tPrice\tValue\tP/L\tP/L %\t")
		for _, h := range holdings {
			res := quotes[h.AssetID]
			price := res.Quote.Price
			if res.Err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", res.Err)
			}
			pl := h.ProfitLoss(price)
			fmt.Fprintf(w, "%s\t%.8f\t%s\t%s\t%s\t%s\t%s\t\n",
				h.AssetID,
				h.Quantity,
				domain.FormatUSD(h.AverageCost),
				domain.FormatUSD(price),
				domain.FormatUSD(h.CurrentValue(price)),
				signed(pl, domain.FormatUSD(pl)),
				signed(pl, fmt.Sprintf("%.2f%%", h.ProfitLossPercentage(price))),
			)
		}
		return w.Flush()
	})
}

type historyCmd struct {
	limit  int
	offset int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "display the trade log" }
func (*historyCmd) Usage() string {
	return `history [-n <count>] [-offset <n>]

  Displays executed trades, most recent first.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 20, "number of trades to display")
	f.IntVar(&c.offset, "offset", 0, "number of recent trades to skip")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(a *app.Application) error {
		records, total, err := a.PortfolioService.GetTransactionHistory(ctx, c.limit, c.offset)
		if err != nil {
			return err
		}
		for _, r := range records {
			fmt.Fprintf(stdout, "%s  %s\n", dim.Sprint(r.Timestamp.Local().Format("2006-01-02 15:04:05")), r)
		}
		fmt.Fprintf(stdout, "%d of %d trades\n", len(records), total)
		return nil
	})
}

type resetCmd struct {
	yes bool
}

func (*resetCmd) Name() string     { return "reset" }
func (*resetCmd) Synopsis() string { return "discard all holdings and trades" }
func (*resetCmd) Usage() string {
	return `reset -yes

  Clears the saved portfolio and trade log and restarts from the initial balance.
`
}

func (c *resetCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.yes, "yes", false, "confirm the reset")
}

func (c *resetCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.yes {
		fmt.Fprintln(os.Stderr, "reset discards every holding and trade; pass -yes to confirm")
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app.Application) error {
		if err := a.PortfolioService.Reset(ctx); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Portfolio reset, balance %s\n", domain.FormatUSD(a.PortfolioService.GetBalance()))
		return nil
	})
}
