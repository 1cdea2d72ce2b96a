package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sqlines/studio/internal/session"
	"github.com/sqlines/studio/internal/tabs"
	"github.com/sqlines/studio/internal/ui"
)

var openCmd = &cobra.Command{
	Use:     "open FILE...",
	GroupID: "session",
	Short:   "Open SQL files as source tabs",
	Long: `Open one or more files as source tabs.

The first file goes into the current tab when it is empty; every other
file gets a new tab after the current one. Directories and executables
are skipped. Opened files are added to the recent files list.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		err := withSession(cmd.Context(), func(s *session.Session) error {
			if err := s.OpenFiles(args); err != nil {
				return err
			}
			return printTabs(os.Stdout, s.Store())
		})
		if err != nil {
			fatal("%v", err)
		}
	},
}

var tabsCmd = &cobra.Command{
	Use:     "tabs",
	GroupID: "session",
	Short:   "List and edit the session's tabs",
}

var tabsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open tabs",
	Run: func(cmd *cobra.Command, args []string) {
		err := withSession(cmd.Context(), func(s *session.Session) error {
			return printTabs(os.Stdout, s.Store())
		})
		if err != nil {
			fatal("%v", err)
		}
	},
}

var tabsNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Open an empty tab after the current one",
	Run: func(cmd *cobra.Command, args []string) {
		err := withSession(cmd.Context(), func(s *session.Session) error {
			i, err := s.NewTab()
			if err != nil {
				return err
			}
			title, _ := s.Store().Title(i)
			fmt.Printf("%s Opened %s (tab %d)\n", ui.RenderPass("✓"), title, i)
			return nil
		})
		if err != nil {
			fatal("%v", err)
		}
	},
}

var tabsCloseCmd = &cobra.Command{
	Use:   "close N",
	Short: "Close tab N",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		i, err := parseIndex(args[0])
		if err != nil {
			fatal("%v", err)
		}
		err = withSession(cmd.Context(), func(s *session.Session) error {
			return s.CloseTab(i)
		})
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%s Closed tab %d\n", ui.RenderPass("✓"), i)
	},
}

var tabsSelectCmd = &cobra.Command{
	Use:   "select N",
	Short: "Make tab N current",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		i, err := parseIndex(args[0])
		if err != nil {
			fatal("%v", err)
		}
		err = withSession(cmd.Context(), func(s *session.Session) error {
			return s.SelectTab(i)
		})
		if err != nil {
			fatal("%v", err)
		}
	},
}

var tabsRenameCmd = &cobra.Command{
	Use:   "rename N TITLE",
	Short: "Set the title of tab N",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		i, err := parseIndex(args[0])
		if err != nil {
			fatal("%v", err)
		}
		err = withSession(cmd.Context(), func(s *session.Session) error {
			return s.Store().SetTitle(args[1], i)
		})
		if err != nil {
			fatal("%v", err)
		}
	},
}

var tabsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every tab, including its text, as YAML, TOML or JSON",
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		var snap tabs.Snapshot
		err := withSession(cmd.Context(), func(s *session.Session) error {
			snap = s.Store().Snapshot()
			return nil
		})
		if err != nil {
			fatal("%v", err)
		}

		w := io.Writer(os.Stdout)
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				fatal("failed to create %s: %v", output, err)
			}
			defer f.Close()
			w = f
		}
		if err := exportTabs(w, snap, format); err != nil {
			fatal("%v", err)
		}
	},
}

// tabsExport is the document written by "tabs export".
type tabsExport struct {
	Current int        `json:"current" yaml:"current" toml:"current"`
	Tabs    []tabs.Tab `json:"tabs" yaml:"tabs" toml:"tabs"`
}

func exportTabs(w io.Writer, snap tabs.Snapshot, format string) error {
	doc := tabsExport{Current: snap.Current, Tabs: snap.Tabs}
	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		return toml.NewEncoder(w).Encode(doc)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	default:
		return fmt.Errorf("unknown format %q (want yaml, toml or json)", format)
	}
}

func printTabs(w io.Writer, store *tabs.Store) error {
	snap := store.Snapshot()
	rows := make([][]string, len(snap.Tabs))
	for i, t := range snap.Tabs {
		file := t.SourceFilePath
		if file == "" {
			file = ui.RenderMuted("-")
		}
		rows[i] = []string{strconv.Itoa(i), t.Title, t.SourceMode, t.TargetMode, file}
	}
	return ui.Table(w, []string{"#", "TITLE", "SOURCE", "TARGET", "FILE"}, rows, snap.Current)
}

func init() {
	tabsExportCmd.Flags().StringP("format", "f", "yaml", "Output format: yaml, toml or json")
	tabsExportCmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")

	tabsCmd.AddCommand(tabsListCmd, tabsNewCmd, tabsCloseCmd, tabsSelectCmd, tabsRenameCmd, tabsExportCmd)
	rootCmd.AddCommand(openCmd, tabsCmd)
}
