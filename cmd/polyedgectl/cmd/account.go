package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

var (
	createType string
	createSize float64
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an evaluation account for a user",
	Args:  cobra.NoArgs,
	RunE:  runCreate,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's evaluation accounts",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show <account-id>",
	Short: "Show one account with its rule metrics",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(createCmd, listCmd, showCmd)

	createCmd.Flags().StringVarP(&createType, "type", "t", string(domain.EvalOneStep), "evaluation type (1-step or 2-step)")
	createCmd.Flags().Float64VarP(&createSize, "size", "s", 10_000, "account size in dollars")
}

func runCreate(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	sess, err := e.session()
	if err != nil {
		return err
	}
	acct, err := e.services.Evaluations.CreateAccount(cmd.Context(), sess.UserID, domain.EvalType(strings.TrimSpace(createType)), createSize)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	printAccounts(cmd.OutOrStdout(), []domain.Account{acct})
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	sess, err := e.session()
	if err != nil {
		return err
	}
	accts, err := e.services.Evaluations.ListAccounts(cmd.Context(), sess)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	if len(accts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no accounts")
		return nil
	}
	printAccounts(cmd.OutOrStdout(), accts)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	sess, err := e.session()
	if err != nil {
		return err
	}
	view, err := e.services.Evaluations.GetAccount(cmd.Context(), sess, args[0])
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	out := cmd.OutOrStdout()
	printAccounts(out, []domain.Account{view.Account})
	p := view.Progress
	fmt.Fprintf(out, "\ndrawdown  %.2f%% of %.2f%%\n", p.DrawdownUsedPct, p.DrawdownLimitPct)
	fmt.Fprintf(out, "profit    %.2f of %.2f (%.1f%%)\n", p.Profit, p.ProfitTarget, p.ProfitProgressPct)
	fmt.Fprintf(out, "consist.  %.2f%% ok=%t\n", p.ConsistencyPct, p.ConsistencyOK)
	fmt.Fprintf(out, "trades    %d of %d\n", p.TradesCount, p.MinTrades)
	fmt.Fprintf(out, "days      %d of %d\n", p.DaysUsed, p.DaysTotal)
	return nil
}

func printAccounts(w io.Writer, accts []domain.Account) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tPHASE\tSTATUS\tSIZE\tBALANCE\tTRADES\tEXPIRES")
	for _, a := range accts {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.2f\t%.2f\t%d\t%s\n",
			a.ID, a.EvalType, a.Phase, a.Status, a.AccountSize, a.Balance,
			a.TradesCount, a.ExpiresAt.Format("2006-01-02"))
	}
	tw.Flush()
}
