package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/trading"
)

var (
	openContract string
	openSide     string
	openSize     float64
	openCents    float64
	closeCents   float64
	tradesLimit  int
	calMonth     string
	calTZ        string
)

var tradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Open, close and list simulated trades",
}

var tradeOpenCmd = &cobra.Command{
	Use:   "open <account-id>",
	Short: "Open a position on an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runTradeOpen,
}

var tradeCloseCmd = &cobra.Command{
	Use:   "close <account-id> <trade-id>",
	Short: "Close a position and run the evaluation rules",
	Args:  cobra.ExactArgs(2),
	RunE:  runTradeClose,
}

var tradeListCmd = &cobra.Command{
	Use:   "list <account-id>",
	Short: "List an account's trades, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runTradeList,
}

var calendarCmd = &cobra.Command{
	Use:   "calendar <account-id>",
	Short: "Show realized P&L per day for a month",
	Args:  cobra.ExactArgs(1),
	RunE:  runCalendar,
}

func init() {
	rootCmd.AddCommand(tradeCmd, calendarCmd)
	tradeCmd.AddCommand(tradeOpenCmd, tradeCloseCmd, tradeListCmd)

	tradeOpenCmd.Flags().StringVar(&openContract, "contract", "", "contract name")
	tradeOpenCmd.Flags().StringVar(&openSide, "side", "YES", "YES or NO")
	tradeOpenCmd.Flags().Float64Var(&openSize, "size", 0, "trade size in dollars")
	tradeOpenCmd.Flags().Float64Var(&openCents, "cents", 0, "entry price in cents")
	_ = tradeOpenCmd.MarkFlagRequired("contract")
	_ = tradeOpenCmd.MarkFlagRequired("size")
	_ = tradeOpenCmd.MarkFlagRequired("cents")

	tradeCloseCmd.Flags().Float64Var(&closeCents, "cents", 0, "exit price in cents")
	_ = tradeCloseCmd.MarkFlagRequired("cents")

	tradeListCmd.Flags().IntVarP(&tradesLimit, "limit", "n", 50, "maximum trades to show")

	calendarCmd.Flags().StringVar(&calMonth, "month", "", "month as YYYY-MM (default current month)")
	calendarCmd.Flags().StringVar(&calTZ, "tz", "UTC", "IANA time zone for day boundaries")
}

func runTradeOpen(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	sess, err := e.session()
	if err != nil {
		return err
	}
	trade, acct, err := e.services.Evaluations.OpenTrade(cmd.Context(), sess, args[0], trading.OpenInput{
		ContractName:    openContract,
		Side:            domain.Side(strings.ToUpper(strings.TrimSpace(openSide))),
		TradeSize:       openSize,
		EntryPriceCents: openCents,
	})
	if err != nil {
		return fmt.Errorf("open trade: %w", err)
	}
	out := cmd.OutOrStdout()
	printTrades(out, []domain.Trade{trade})
	fmt.Fprintf(out, "\nbalance %.2f\n", acct.Balance)
	return nil
}

func runTradeClose(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	sess, err := e.session()
	if err != nil {
		return err
	}
	res, err := e.services.Evaluations.CloseTrade(cmd.Context(), sess, args[0], args[1], closeCents)
	if err != nil {
		return fmt.Errorf("close trade: %w", err)
	}
	out := cmd.OutOrStdout()
	printTrades(out, []domain.Trade{res.Trade})
	d := res.Decision
	fmt.Fprintf(out, "\noutcome %s  status %s  phase %d  balance %.2f  drawdown %.2f%%\n",
		d.Outcome, d.Account.Status, d.Account.Phase, d.Account.Balance, d.DrawdownPct)
	return nil
}

func runTradeList(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	sess, err := e.session()
	if err != nil {
		return err
	}
	trades, err := e.services.Evaluations.ListTrades(cmd.Context(), sess, args[0], domain.ListOpts{Limit: tradesLimit})
	if err != nil {
		return fmt.Errorf("list trades: %w", err)
	}
	if len(trades) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no trades")
		return nil
	}
	printTrades(cmd.OutOrStdout(), trades)
	return nil
}

func runCalendar(cmd *cobra.Command, args []string) error {
	loc, err := time.LoadLocation(calTZ)
	if err != nil {
		return fmt.Errorf("bad --tz: %w", err)
	}
	month := time.Now().In(loc)
	if calMonth != "" {
		month, err = time.ParseInLocation("2006-01", calMonth, loc)
		if err != nil {
			return fmt.Errorf("bad --month: %w", err)
		}
	}

	e, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	sess, err := e.session()
	if err != nil {
		return err
	}
	cal, err := e.services.Evaluations.Calendar(cmd.Context(), sess, args[0], month.Year(), month.Month(), loc)
	if err != nil {
		return fmt.Errorf("calendar: %w", err)
	}
	printCalendar(cmd.OutOrStdout(), cal)
	return nil
}

func printTrades(w io.Writer, trades []domain.Trade) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCONTRACT\tSIDE\tSIZE\tENTRY\tEXIT\tPNL\tSTATUS\tOPENED")
	for _, t := range trades {
		exit, pnl := "-", "-"
		if t.ExitPrice != nil {
			exit = fmt.Sprintf("%.2f", *t.ExitPrice)
		}
		if t.PnL != nil {
			pnl = fmt.Sprintf("%.2f", *t.PnL)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.2f\t%s\t%s\t%s\t%s\n",
			t.ID, t.ContractName, t.Side, t.TradeSize, t.EntryPrice, exit, pnl,
			t.Status, t.OpenedAt.Format(time.RFC3339))
	}
	tw.Flush()
}

func printCalendar(w io.Writer, cal trading.MonthCalendar) {
	fmt.Fprintf(w, "%s %d\n", cal.Month, cal.Year)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tPNL\tTRADES")
	for day := 1; day <= cal.DaysInMonth; day++ {
		pnl, ok := cal.DailyPnL[day]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%d\t%.2f\t%d\n", day, pnl, len(cal.DailyTrades[day]))
	}
	tw.Flush()
	fmt.Fprintf(w, "\ntotal %.2f over %d days (%d up, %d down)  best %.2f  worst %.2f\n",
		cal.TotalPnL, cal.TradingDays, cal.WinDays, cal.LossDays, cal.BestDay, cal.WorstDay)
}
