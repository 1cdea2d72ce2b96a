package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sqlines/studio/internal/session"
	"github.com/sqlines/studio/internal/ui"
)

var recentCmd = &cobra.Command{
	Use:     "recent",
	GroupID: "session",
	Short:   "Show or clear recently opened files",
}

var recentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recently opened files",
	Run: func(cmd *cobra.Command, args []string) {
		err := withSession(cmd.Context(), func(s *session.Session) error {
			files := s.Files().RecentFiles()
			if len(files) == 0 {
				fmt.Println(ui.RenderMuted("No recent files"))
				return nil
			}
			for i, f := range files {
				fmt.Printf("%3d  %s\n", i, f)
			}
			return nil
		})
		if err != nil {
			fatal("%v", err)
		}
	},
}

var recentClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every recent file",
	Run: func(cmd *cobra.Command, args []string) {
		var n int
		err := withSession(cmd.Context(), func(s *session.Session) error {
			n = s.Files().CountRecentFiles()
			s.Files().ClearRecentFiles()
			return nil
		})
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%s Cleared %d recent file(s)\n", ui.RenderPass("✓"), n)
	},
}

func init() {
	recentCmd.AddCommand(recentListCmd, recentClearCmd)
	rootCmd.AddCommand(recentCmd)
}
