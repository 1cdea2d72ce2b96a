package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlines/studio/internal/converter"
	"github.com/sqlines/studio/internal/session"
	"github.com/sqlines/studio/internal/ui"
)

var convertCmd = &cobra.Command{
	Use:     "convert",
	GroupID: "convert",
	Short:   "Convert a tab's source SQL to its target dialect",
	Long: `Run the SQLines converter on a tab (default: the current tab).

A source backed by a file is saved first. The result is written to
<current_dir>/<title>.<target> and loaded into the tab's target side.

Examples:
  sqlstudio convert
  sqlstudio convert --tab 2 --source Oracle --target PostgreSQL`,
	Run: func(cmd *cobra.Command, args []string) {
		index, _ := cmd.Flags().GetInt("tab")
		source, _ := cmd.Flags().GetString("source")
		target, _ := cmd.Flags().GetString("target")
		show, _ := cmd.Flags().GetBool("print")

		var res converter.Result
		var text string
		err := withSession(cmd.Context(), func(s *session.Session) error {
			i, err := currentTab(s, index)
			if err != nil {
				return err
			}
			if err := s.SetModes(i, source, target); err != nil {
				return err
			}
			fmt.Printf("%s Converting tab %d...\n", ui.RenderAccent("⚙"), i)
			res, err = s.ConvertTab(context.WithoutCancel(cmd.Context()), i)
			if err != nil {
				return fmt.Errorf("conversion error in tab %d: %w", i, err)
			}
			text, _ = s.Store().TargetText(i)
			return nil
		})
		if err != nil {
			fatal("%v", err)
		}

		fmt.Printf("%s Converted in %v: %s\n", ui.RenderPass("✓"), res.Duration.Round(time.Millisecond), res.TargetPath)
		if show {
			fmt.Fprintln(os.Stdout)
			fmt.Fprintln(os.Stdout, text)
		}
	},
}

func init() {
	convertCmd.Flags().Int("tab", -1, "Tab index (default: current tab)")
	convertCmd.Flags().StringP("source", "s", "", "Source dialect name (see 'sqlstudio modes')")
	convertCmd.Flags().StringP("target", "t", "", "Target dialect name (see 'sqlstudio modes')")
	convertCmd.Flags().Bool("print", false, "Print the converted SQL")

	rootCmd.AddCommand(convertCmd)
}
