package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"spbackup/internal/s3client"
	"spbackup/pkg/utils"
)

var restoreCmd = &cobra.Command{
	Use:   "restore SITE",
	Short: "Download the latest archive of a site",
	Long: `Download the most recent archive of a site from the S3 bucket.

The archive is saved in the destination directory (current directory by default).
With --extract the archive is also unpacked there, recreating the site's
<site>_<timestamp> folder tree.`,
	Example: `  # Fetch the latest hr archive
  spbackup restore hr

  # Fetch and unpack into /srv/restore
  spbackup restore hr --destination /srv/restore --extract

  # From a different bucket, no prompt
  spbackup restore hr --bucket my-other-bucket --confirm`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRestore(cmd, args)
	},
}

func runRestore(cmd *cobra.Command, args []string) {
	site := args[0]
	destination, _ := cmd.Flags().GetString("destination")
	extract, _ := cmd.Flags().GetBool("extract")
	confirm, _ := cmd.Flags().GetBool("confirm")

	if destination == "" {
		destination = "."
	}

	if !confirm {
		fmt.Printf("Restore operation summary:\n")
		fmt.Printf("Bucket: %s\n", getBucketName(cmd))
		fmt.Printf("Site: %s\n", site)
		fmt.Printf("Destination: %s\n", destination)

		fmt.Print("Continue with restore? (y/N): ")
		var response string
		if _, err := fmt.Scanln(&response); err != nil {
			utils.PrintError(err, "restore")
			return
		}
		if !slices.Contains([]string{"y", "yes"}, strings.ToLower(response)) {
			fmt.Println("Restore cancelled.")
			return
		}
	}

	client, err := s3client.New(bucketConfig(cmd))
	if err != nil {
		utils.PrintError(err, "restore")
		return
	}

	timeout, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	if isVerbose(cmd) {
		cmd.Printf("Starting restore operation...\n")
		cmd.Printf("  Site: %s\n", site)
		cmd.Printf("  Destination: %s\n", destination)
	}

	result, err := client.DownloadLatestArchive(ctx, site, destination)
	if err != nil {
		utils.PrintError(err, "restore")
		return
	}

	if extract {
		if err := utils.ExtractTarGz(result.LocalPath, destination); err != nil {
			utils.PrintError(err, "restore")
			return
		}
		result.ExtractedTo = destination
	}

	if err := utils.PrintJSON(result); err != nil {
		utils.PrintError(err, "restore")
		return
	}

	if isVerbose(cmd) {
		cmd.Println("Restore operation completed successfully")
		cmd.Printf("Downloaded archive: %s\n", result.LocalPath)
	}
}

func init() {
	restoreCmd.Flags().StringP("destination", "d", "", "Local destination directory (default: current directory)")
	restoreCmd.Flags().BoolP("extract", "x", false, "Unpack the archive after downloading")
	restoreCmd.Flags().Bool("confirm", false, "Skip confirmation prompt")
	restoreCmd.Flags().Int("timeout", 3600, "Timeout in seconds for the operation (default: 1 hour)")

	restoreCmd.SetUsageTemplate(usageTemplate)
}
