package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	boardLimit  int
	expireLimit int
	archiveMon  string
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the top accounts by return",
	Args:  cobra.NoArgs,
	RunE:  runLeaderboard,
}

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Run one expiry sweep over accounts past their deadline",
	Args:  cobra.NoArgs,
	RunE:  runExpire,
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect archived evaluations in object storage",
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archive objects",
	Args:  cobra.NoArgs,
	RunE:  runArchiveList,
}

var archiveShowCmd = &cobra.Command{
	Use:   "show <path>",
	Short: "Print a decoded archive as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveShow,
}

var errNoArchive = errors.New("archive storage is not enabled (set [s3] enabled = true)")

func init() {
	rootCmd.AddCommand(leaderboardCmd, expireCmd, archiveCmd)
	archiveCmd.AddCommand(archiveListCmd, archiveShowCmd)

	leaderboardCmd.Flags().IntVarP(&boardLimit, "limit", "n", 50, "rows to show")
	expireCmd.Flags().IntVarP(&expireLimit, "limit", "n", 500, "maximum accounts to expire")
	archiveListCmd.Flags().StringVar(&archiveMon, "month", "", "restrict to a month (YYYY-MM)")
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	rows, err := e.services.Leaderboard.Top(cmd.Context(), boardLimit)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tTRADER\tTYPE\tSIZE\tRETURN\tTRADES\tSTATUS")
	for i, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.0f\t%.2f%%\t%d\t%s\n",
			i+1, r.Trader, r.EvalType, r.AccountSize, r.ReturnPct, r.TradesCount, r.Status)
	}
	return tw.Flush()
}

func runExpire(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	n, err := e.services.Evaluations.ExpireDue(cmd.Context(), expireLimit)
	if err != nil {
		return fmt.Errorf("expire: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "expired %d accounts\n", n)
	return nil
}

func runArchiveList(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()
	if e.deps.Archive == nil {
		return errNoArchive
	}

	objs, err := e.deps.Archive.ListArchives(cmd.Context(), archiveMon)
	if err != nil {
		return fmt.Errorf("list archives: %w", err)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tSIZE\tMODIFIED")
	for _, o := range objs {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", o.Path, o.Size, o.LastModified.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runArchiveShow(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()
	if e.deps.Archive == nil {
		return errNoArchive
	}

	archive, err := e.deps.Archive.ReadArchive(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(archive)
}
