package cmd

import (
	"github.com/spf13/cobra"

	"spbackup/config"
	"spbackup/internal/models"
	"spbackup/pkg/utils"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List the configured sites",
	Long: `List the sites from the sites file as JSON, in backup order.
Client secrets are never printed.`,
	Example: `  # Show configured sites
  spbackup sites

  # Check another sites file
  spbackup sites --sites /etc/spbackup/sites.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		runSites(cmd)
	},
}

func runSites(cmd *cobra.Command) {
	sites, err := loadSites(cmd)
	if err != nil {
		utils.PrintError(err, "sites")
		return
	}

	if err := utils.PrintJSON(siteInfos(sites)); err != nil {
		utils.PrintError(err, "sites")
	}
}

func siteInfos(sites []config.Site) []models.SiteInfo {
	infos := make([]models.SiteInfo, 0, len(sites))
	for _, s := range sites {
		mode := "acs"
		if s.TenantID != "" {
			mode = "azure_ad"
		}
		infos = append(infos, models.SiteInfo{
			Name:     s.Name(),
			SiteURL:  s.SiteURL,
			BasePath: s.BasePath,
			ClientID: s.ClientID,
			TenantID: s.TenantID,
			AuthMode: mode,
		})
	}
	return infos
}

func init() {
	sitesCmd.Flags().String("sites", "", "Sites file (default: SITES_FILE or sites.yaml)")
}
