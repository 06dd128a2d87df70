package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"spbackup/config"
	"spbackup/internal/backup"
	"spbackup/internal/catalog"
	"spbackup/internal/s3client"
	"spbackup/internal/sharepoint"
	"spbackup/pkg/utils"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Back up the configured SharePoint sites",
	Long: `Back up every site listed in the sites file, one site after another.

For each site the command will:
- Authenticate with the site's app credentials
- Mirror the document library folder tree under the download root
- Wait for all downloads, then pack the mirror into <site>_<timestamp>.tar.gz
- Upload the archive to S3 when a bucket is configured
- Remove the mirror directory

A failed site never stops the sites after it. The run summary is printed
as JSON; per-site details go to sharepoint_downloads_<site>_<timestamp>.log
in the log directory.`,
	Example: `  # Back up all sites from sites.yaml
  spbackup run

  # Back up two sites only, with 4 parallel downloads
  spbackup run --site hr --site finance --workers 4

  # Keep archives local even if a bucket is configured
  spbackup run --no-upload

  # Use another sites file and echo the site logs to stderr
  spbackup run --sites /etc/spbackup/sites.yaml --verbose`,
	Run: func(cmd *cobra.Command, args []string) {
		runBackup(cmd)
	},
}

func runBackup(cmd *cobra.Command) {
	runCfg, err := runConfig(cmd)
	if err != nil {
		utils.PrintError(err, "run")
		return
	}

	sites, err := loadSites(cmd)
	if err != nil {
		utils.PrintError(err, "run")
		return
	}
	names, _ := cmd.Flags().GetStringSlice("site")
	sites, err = config.FilterSites(sites, names)
	if err != nil {
		utils.PrintError(err, "run")
		return
	}

	for _, dir := range []string{runCfg.DownloadRoot, runCfg.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			utils.PrintError(fmt.Errorf("failed to create %s: %w", dir, err), "run")
			return
		}
	}

	noUpload, _ := cmd.Flags().GetBool("no-upload")
	var uploader backup.Uploader
	if !noUpload && runCfg.UploadEnabled() {
		client, err := s3client.New(runCfg)
		if err != nil {
			utils.PrintError(err, "run")
			return
		}
		uploader = client
	}

	var recorder backup.Recorder
	if runCfg.CatalogPath != "" {
		cat, err := catalog.Open(runCfg.CatalogPath)
		if err != nil {
			utils.PrintError(err, "run")
			return
		}
		defer cat.Close()
		recorder = cat
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var echo io.Writer
	if isVerbose(cmd) {
		echo = os.Stderr
		cmd.Printf("Backing up %d site(s) into %s\n", len(sites), runCfg.DownloadRoot)
	}

	runTimestamp := utils.RunTimestamp(time.Now())
	orchestrator := backup.NewOrchestrator(
		sharepoint.New(nil, runCfg.AuthorityURL),
		backup.TarGzArchiver{},
		uploader,
		backup.Options{
			DownloadRoot:  runCfg.DownloadRoot,
			LogDir:        runCfg.LogDir,
			Workers:       runCfg.Workers,
			RetryAttempts: runCfg.RetryAttempts,
			RetryDelay:    runCfg.RetryDelay,
			RunTimestamp:  runTimestamp,
			Echo:          echo,
		},
	)
	coordinator := backup.NewCoordinator(orchestrator, recorder, slog.Default(), runTimestamp)

	summary := coordinator.Run(ctx, sites)

	if err := utils.PrintJSON(summary); err != nil {
		utils.PrintError(err, "run")
		return
	}

	if isVerbose(cmd) {
		cmd.Printf("Backup finished: %d succeeded, %d failed\n", summary.Succeeded, summary.Failed)
	}
}

// runConfig applies the command line overrides to the loaded configuration.
func runConfig(cmd *cobra.Command) (*config.Config, error) {
	c := bucketConfig(cmd)
	flags := cmd.Flags()

	if flags.Changed("workers") {
		c.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("retry-attempts") {
		c.RetryAttempts, _ = flags.GetInt("retry-attempts")
	}
	if flags.Changed("retry-delay") {
		c.RetryDelay, _ = flags.GetDuration("retry-delay")
	}
	if flags.Changed("download-root") {
		c.DownloadRoot, _ = flags.GetString("download-root")
	}
	if flags.Changed("log-dir") {
		c.LogDir, _ = flags.GetString("log-dir")
	}
	if flags.Changed("catalog") {
		c.CatalogPath, _ = flags.GetString("catalog")
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func init() {
	runCmd.Flags().String("sites", "", "Sites file (default: SITES_FILE or sites.yaml)")
	runCmd.Flags().StringSlice("site", nil, "Back up only the named site (repeatable)")
	runCmd.Flags().IntP("workers", "w", config.DefaultWorkers, "Parallel downloads per site")
	runCmd.Flags().String("download-root", config.DefaultDownloadRoot, "Directory for mirrors and archives")
	runCmd.Flags().String("log-dir", config.DefaultLogDir, "Directory for per-site logs")
	runCmd.Flags().Int("retry-attempts", config.DefaultRetryAttempts, "Attempts per remote call")
	runCmd.Flags().Duration("retry-delay", config.DefaultRetryDelay, "Delay between attempts")
	runCmd.Flags().String("catalog", "", "SQLite catalog of finished runs (default: CATALOG_PATH)")
	runCmd.Flags().Bool("no-upload", false, "Keep archives local even when a bucket is configured")

	runCmd.SetUsageTemplate(usageTemplate)
}
