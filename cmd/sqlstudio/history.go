package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlines/studio/internal/history"
	"github.com/sqlines/studio/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:     "history",
	GroupID: "convert",
	Short:   "Show past conversions",
	Long: `Show past converter runs, newest first.

--since accepts a duration ("36h"), a date ("2024-05-01"), an RFC 3339
timestamp or a phrase such as "yesterday" or "last monday".`,
	Run: func(cmd *cobra.Command, args []string) {
		sinceText, _ := cmd.Flags().GetString("since")
		limit, _ := cmd.Flags().GetInt("limit")
		status, _ := cmd.Flags().GetString("status")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		prune, _ := cmd.Flags().GetBool("prune")

		since, err := history.ParseSince(sinceText, time.Now())
		if err != nil {
			fatal("invalid --since: %v", err)
		}

		db, err := history.Open(cfg.HistoryPath())
		if err != nil {
			fatal("failed to open history: %v", err)
		}
		defer db.Close()

		ctx := cmd.Context()
		if prune {
			if since.IsZero() {
				fatal("--prune requires --since")
			}
			n, err := db.Prune(ctx, since)
			if err != nil {
				fatal("%v", err)
			}
			fmt.Printf("%s Removed %d run(s) before %s\n", ui.RenderPass("✓"), n, since.Format(time.RFC3339))
			return
		}

		runs, err := db.List(ctx, history.Filter{Since: since, Status: status, Limit: limit})
		if err != nil {
			fatal("%v", err)
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(runs)
			return
		}
		if len(runs) == 0 {
			fmt.Println(ui.RenderMuted("No conversions recorded"))
			return
		}

		rows := make([][]string, len(runs))
		for i, r := range runs {
			result := ui.RenderPass(r.Status)
			if r.Status != history.StatusOK {
				result = ui.RenderFail(r.Status)
			}
			rows[i] = []string{
				strconv.FormatInt(r.ID, 10),
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Title,
				r.SourceMode + " → " + r.TargetMode,
				r.Duration.Round(time.Millisecond).String(),
				result,
			}
		}
		if err := ui.Table(os.Stdout, []string{"ID", "STARTED", "TAB", "MODES", "TOOK", "STATUS"}, rows, -1); err != nil {
			fatal("%v", err)
		}
	},
}

func init() {
	historyCmd.Flags().String("since", "", "Only show runs after this time")
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs (0 for all)")
	historyCmd.Flags().String("status", "", "Only show runs with this status (ok, error)")
	historyCmd.Flags().Bool("json", false, "Output runs as JSON")
	historyCmd.Flags().Bool("prune", false, "Delete runs older than --since instead of listing")

	rootCmd.AddCommand(historyCmd)
}
