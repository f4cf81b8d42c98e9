package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	app "papertrade/internal"
	"papertrade/internal/dispatch"
	"papertrade/internal/domain"
	"papertrade/internal/tracker"
)

type quoteCmd struct{}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "display current market quotes" }
func (*quoteCmd) Usage() string {
	return `quote [<asset>...]

  Fetches the current price, 24h change, range and volume of each asset,
  or of every supported asset when none is given.
`
}

func (*quoteCmd) SetFlags(*flag.FlagSet) {}

func (*quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(a *app.Application) error {
		assets := f.Args()
		if len(assets) == 0 {
			assets = a.Feed.Symbols().Supported()
		}
		results := a.Feed.FetchMarketData(ctx, assets)

		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "Asset\tPrice\t24h\tHigh\tLow\tVolume\t")
		failed := 0
		for _, asset := range assets {
			res := results[asset]
			if res.Err != nil {
				failed++
				fmt.Fprintf(w, "%s\t%s\t\t\t\t\t\n", res.Quote.AssetID, loss.Sprint("unavailable"))
				continue
			}
			q := res.Quote
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f\t\n",
				q.AssetID,
				domain.FormatUSD(q.Price),
				signed(q.Change24h, fmt.Sprintf("%.2f%%", q.Change24h)),
				domain.FormatUSD(q.High24h),
				domain.FormatUSD(q.Low24h),
				q.Volume24h,
			)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if failed == len(assets) {
			return errors.New("no quote available")
		}
		return nil
	})
}

type watchCmd struct {
	count int
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "stream live prices until interrupted" }
func (*watchCmd) Usage() string {
	return `watch [-n <updates>] <asset>...

  Polls the exchange and prints each price update with the value of the
  held position, until interrupted or -n updates were printed.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.count, "n", 0, "stop after this many updates, 0 for no limit")
}

func (c *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "watch needs at least one asset")
		return subcommands.ExitUsageError
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, func(a *app.Application) error {
		// All output happens on this goroutine, one task at a time.
		loop := dispatch.NewLoop(64)
		defer loop.Close()
		fg := loop.Context(ctx)
		svc := a.PortfolioService

		svc.GetTotalValueAsync(ctx, loop, func(total float64) {
			fmt.Fprintf(stdout, "%s portfolio value %s\n", dim.Sprint(time.Now().Format(time.TimeOnly)), domain.FormatUSD(total))
		})

		seen := 0
		observer := func(symbol string, price, change float64) {
			line := fmt.Sprintf("%s %-5s %s %s",
				dim.Sprint(time.Now().Format(time.TimeOnly)),
				symbol,
				domain.FormatUSD(price),
				signed(change, fmt.Sprintf("%.2f%%", change)),
			)
			if h, ok := svc.GetHolding(symbol); ok {
				pl := h.ProfitLoss(price)
				line += fmt.Sprintf("  held %.8f = %s (%s)", h.Quantity, domain.FormatUSD(h.CurrentValue(price)), signed(pl, domain.FormatUSD(pl)))
			}
			fmt.Fprintln(stdout, line)

			seen++
			if c.count > 0 && seen >= c.count {
				fmt.Fprintf(stdout, "Unrealized P/L %s\n", domain.FormatUSD(svc.GetProfitLoss(fg)))
				loop.Close()
			}
		}

		subs := make([]*tracker.Subscription, 0, f.NArg())
		for _, asset := range f.Args() {
			subs = append(subs, a.Tracker.Track(a.Feed.Symbol(asset), loop, observer))
		}
		defer func() {
			for _, sub := range subs {
				a.Tracker.Untrack(sub)
			}
		}()

		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
}
