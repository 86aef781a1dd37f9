package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/RecoveryAshes/arachas/internal/history"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "显示最近的运行记录",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		store, err := history.Open(appConfig.History.Dir)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.List(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if asJSON {
			return printHistoryJSON(cmd.OutOrStdout(), runs)
		}
		printHistory(cmd.OutOrStdout(), runs)
		return nil
	},
}

func printHistory(w io.Writer, runs []*history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "没有运行记录")
		return
	}
	for _, r := range runs {
		status := fmt.Sprintf("+%d -%d", len(r.Added), len(r.Removed))
		if r.FirstRun {
			status = "首次运行"
		}
		fmt.Fprintf(w, "%s  %s  卡牌 %-5d  丢弃 %-4d  %-10s  %.1fs\n",
			r.StartedAt.Local().Format(time.DateTime), r.RunID, r.Cards, r.Dropped, status, r.Duration)
	}
}

func printHistoryJSON(w io.Writer, runs []*history.Run) error {
	if runs == nil {
		runs = []*history.Run{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(runs)
}
