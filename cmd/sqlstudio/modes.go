package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sqlines/studio/internal/modes"
	"github.com/sqlines/studio/internal/ui"
)

var modesCmd = &cobra.Command{
	Use:     "modes",
	GroupID: "convert",
	Short:   "List the source and target dialects",
	Run: func(cmd *cobra.Command, args []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		set, err := modes.Load(cfg.ModesDir)
		if err != nil {
			fatal("%v", err)
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(map[string][]modes.Mode{
				"source": set.Source.Modes(),
				"target": set.Target.Modes(),
			})
			return
		}

		for _, part := range []struct {
			title string
			vocab *modes.Vocabulary
		}{
			{"Source dialects", set.Source},
			{"Target dialects", set.Target},
		} {
			fmt.Println(ui.RenderAccent(part.title))
			rows := make([][]string, 0, part.vocab.Len())
			for _, m := range part.vocab.Modes() {
				rows = append(rows, []string{m.Name, m.Token})
			}
			if err := ui.Table(os.Stdout, []string{"NAME", "TOKEN"}, rows, -1); err != nil {
				fatal("%v", err)
			}
			fmt.Println()
		}
	},
}

func init() {
	modesCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(modesCmd)
}
