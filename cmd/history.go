package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"spbackup/internal/catalog"
	"spbackup/pkg/utils"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent backups from the run catalog",
	Long: `Show recorded site backups, newest first, as JSON.
The catalog is written by "spbackup run" when CATALOG_PATH or --catalog is set.`,
	Example: `  # Last 20 site backups
  spbackup history

  # Last 5 backups of one site
  spbackup history --site hr --limit 5`,
	Run: func(cmd *cobra.Command, args []string) {
		runHistory(cmd)
	},
}

func runHistory(cmd *cobra.Command) {
	path, _ := cmd.Flags().GetString("catalog")
	if path == "" {
		path = cfg.CatalogPath
	}
	if path == "" {
		utils.PrintError(fmt.Errorf("no catalog configured, set CATALOG_PATH or --catalog"), "history")
		return
	}

	site, _ := cmd.Flags().GetString("site")
	limit, _ := cmd.Flags().GetInt("limit")

	cat, err := catalog.Open(path)
	if err != nil {
		utils.PrintError(err, "history")
		return
	}
	defer cat.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	entries, err := cat.List(ctx, site, limit)
	if err != nil {
		utils.PrintError(err, "history")
		return
	}

	if err := utils.PrintJSON(entries); err != nil {
		utils.PrintError(err, "history")
	}
}

func init() {
	historyCmd.Flags().String("catalog", "", "SQLite catalog (default: CATALOG_PATH)")
	historyCmd.Flags().String("site", "", "Only show this site")
	historyCmd.Flags().IntP("limit", "n", catalog.DefaultLimit, "Maximum number of entries")
}
