// Package cli implements the tradectl operator commands.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"github.com/simaogato/cryptotrade-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/cryptotrade-backend/internal/config"
)

// Commands is the list of tradectl subcommands
var Commands = []subcommands.Command{
	&tradeCmd{side: "buy"},
	&tradeCmd{side: "sell"},
	&pricesCmd{},
	&portfolioCmd{},
	&historyCmd{},
	&migrateCmd{},
}

var stdout io.Writer = os.Stdout

// serverFlags are shared by every command that talks to a running server
type serverFlags struct {
	server  string
	timeout time.Duration
}

func (s *serverFlags) register(f *flag.FlagSet) {
	server := os.Getenv("TRADECTL_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	f.StringVar(&s.server, "server", server, "Base URL of the trading server (env TRADECTL_SERVER).")
	f.DurationVar(&s.timeout, "timeout", 10*time.Second, "Request timeout.")
}

func (s *serverFlags) client() *Client {
	return NewClient(s.server, s.timeout)
}

type tradeCmd struct {
	serverFlags
	side     string
	account  string
	symbol   string
	quantity string
	price    string
}

func (c *tradeCmd) Name() string { return c.side }
func (c *tradeCmd) Synopsis() string {
	return c.side + " a cryptocurrency for an account"
}
func (c *tradeCmd) Usage() string {
	return fmt.Sprintf(`tradectl %s -a <account> -s <symbol> -q <quantity> [-p <price>]

  Executes a %s. Without -p the server uses its current market price.
`, c.side, strings.ToUpper(c.side))
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.StringVar(&c.account, "a", "", "Account ID.")
	f.StringVar(&c.symbol, "s", "", "Cryptocurrency symbol, e.g. BTC.")
	f.StringVar(&c.quantity, "q", "", "Quantity to trade.")
	f.StringVar(&c.price, "p", "", "Price per unit (optional).")
}

func (c *tradeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" || c.symbol == "" || c.quantity == "" {
		fmt.Fprintln(os.Stderr, "-a, -s and -q are required")
		return subcommands.ExitUsageError
	}

	result, err := c.client().Trade(ctx, c.side, c.account, c.symbol, c.quantity, c.price)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	fmt.Fprintf(stdout, "%s %s %s @ %s = %s\n", result.Type, result.Quantity, result.Symbol, result.PricePerUnit, result.TotalPrice)
	fmt.Fprintf(stdout, "balance: %s  position: %s\n", result.Balance, result.HoldingQuantity)
	return subcommands.ExitSuccess
}

type pricesCmd struct {
	serverFlags
}

func (*pricesCmd) Name() string     { return "prices" }
func (*pricesCmd) Synopsis() string { return "print the server's current market prices" }
func (*pricesCmd) Usage() string {
	return `tradectl prices

  Prints the latest cached price of every subscribed pair.
`
}

func (c *pricesCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
}

func (c *pricesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	prices, err := c.client().Prices(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	symbols := make([]string, 0, len(prices))
	for symbol := range prices {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PAIR\tPRICE")
	for _, symbol := range symbols {
		fmt.Fprintf(w, "%s\t%v\n", symbol, prices[symbol])
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type portfolioCmd struct {
	serverFlags
	account string
}

func (*portfolioCmd) Name() string     { return "portfolio" }
func (*portfolioCmd) Synopsis() string { return "show an account's cash, holdings and equity" }
func (*portfolioCmd) Usage() string {
	return `tradectl portfolio -a <account>

  Values every holding at the current market price.
`
}

func (c *portfolioCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.StringVar(&c.account, "a", "", "Account ID.")
}

func (c *portfolioCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" {
		fmt.Fprintln(os.Stderr, "-a is required")
		return subcommands.ExitUsageError
	}

	p, err := c.client().Portfolio(ctx, c.account)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tQUANTITY\tAVG COST\tVALUE\tP&L")
	for _, h := range p.Holdings {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", h.Symbol, h.Quantity, h.AverageCost, orDash(h.MarketValue), orDash(h.UnrealizedPnL))
	}
	w.Flush()
	fmt.Fprintf(stdout, "cash: %s  holdings: %s  equity: %s\n", p.Balance, p.HoldingsValue, p.TotalEquity)
	return subcommands.ExitSuccess
}

type historyCmd struct {
	serverFlags
	account string
	limit   int
	offset  int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list an account's trades, newest first" }
func (*historyCmd) Usage() string {
	return `tradectl history -a <account> [-n <limit>] [-o <offset>]
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.StringVar(&c.account, "a", "", "Account ID.")
	f.IntVar(&c.limit, "n", 20, "Number of trades to show.")
	f.IntVar(&c.offset, "o", 0, "Number of trades to skip.")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" {
		fmt.Fprintln(os.Stderr, "-a is required")
		return subcommands.ExitUsageError
	}

	page, err := c.client().Transactions(ctx, c.account, c.limit, c.offset)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTYPE\tSYMBOL\tQUANTITY\tPRICE\tTOTAL")
	for _, tx := range page.Transactions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.Date.Format(time.DateTime), tx.Type, tx.Symbol, tx.Quantity, tx.PricePerUnit, tx.TotalPrice)
	}
	w.Flush()
	fmt.Fprintf(stdout, "%d-%d of %d\n", page.Offset+min(1, len(page.Transactions)), page.Offset+len(page.Transactions), page.Total)
	return subcommands.ExitSuccess
}

type migrateCmd struct {
	config string
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply the database schema" }
func (*migrateCmd) Usage() string {
	return `tradectl migrate [-config <file>]

  Connects with the server's database settings and applies the embedded schema.
  Safe to run more than once.
`
}

func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "", "Path to a TOML config file.")
}

func (c *migrateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Load(c.config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	db, err := postgres.NewDB(ctx, cfg.Database.ConnectionString(), postgres.PoolConfig{MaxOpenConns: 1})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(stdout, "schema applied")
	return subcommands.ExitSuccess
}

func orDash(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
