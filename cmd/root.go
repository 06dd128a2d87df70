package cmd

import (
	"github.com/spf13/cobra"

	"spbackup/config"
)

var (
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "spbackup",
	Short: "SharePoint document library backup tool",
	Long: `spbackup mirrors SharePoint document libraries to local disk and packs
each site into a tar.gz archive, optionally copied to an S3 bucket.
Configuration is loaded from .env file or environment variables,
sites are listed in a YAML file`,
}

func Execute(config *config.Config) error {
	cfg = config
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sitesCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(archivesCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(uploadCmd)

	rootCmd.PersistentFlags().StringP("bucket", "b", "", "Override bucket name from config")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
}

func getBucketName(cmd *cobra.Command) string {
	bucket, _ := cmd.Flags().GetString("bucket")
	if bucket != "" {
		return bucket
	}
	return cfg.BucketName
}

func isVerbose(cmd *cobra.Command) bool {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return verbose
}

// bucketConfig is cfg with the --bucket override applied.
func bucketConfig(cmd *cobra.Command) *config.Config {
	c := *cfg
	c.BucketName = getBucketName(cmd)
	return &c
}

// loadSites reads the sites file named by --sites, or the configured one.
func loadSites(cmd *cobra.Command) ([]config.Site, error) {
	file, _ := cmd.Flags().GetString("sites")
	if file == "" {
		file = cfg.SitesFile
	}
	return config.LoadSites(file)
}

const usageTemplate = `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}

Available Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`
