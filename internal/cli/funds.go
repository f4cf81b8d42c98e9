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

type depositCmd struct{}

func (*depositCmd) Name() string     { return "deposit" }
func (*depositCmd) Synopsis() string { return "add virtual cash" }
func (*depositCmd) Usage() string {
	return `deposit <amount>

  Adds amount to the cash balance.
`
}

func (*depositCmd) SetFlags(*flag.FlagSet) {}

func (*depositCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "deposit takes exactly one amount")
		return subcommands.ExitUsageError
	}
	amount, err := parseAmount(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app.Application) error {
		balance, err := a.PortfolioService.Deposit(ctx, amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Deposited %s, balance %s\n", domain.FormatUSD(amount), domain.FormatUSD(balance))
		return nil
	})
}

type setBalanceCmd struct {
	add bool
}

func (*setBalanceCmd) Name() string     { return "set-balance" }
func (*setBalanceCmd) Synopsis() string { return "replace the cash balance" }
func (*setBalanceCmd) Usage() string {
	return `set-balance [-add] <amount>

  Replaces the cash balance with amount, or adds to it with -add.
`
}

func (c *setBalanceCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.add, "add", false, "add to the balance instead of replacing it")
}

func (c *setBalanceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "set-balance takes exactly one amount")
		return subcommands.ExitUsageError
	}
	amount, err := parseAmount(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app.Application) error {
		balance, err := a.PortfolioService.SetBalance(ctx, amount, c.add)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Balance %s\n", domain.FormatUSD(balance))
		return nil
	})
}
