package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"spbackup/internal/s3client"
	"spbackup/pkg/utils"
)

var archivesCmd = &cobra.Command{
	Use:   "archives",
	Short: "Summarize the archives kept in the bucket",
	Long: `Summarize the site archives uploaded to the S3 bucket: totals for the
bucket and, per site, the number of archives, their size and the newest one.
The bucket name is taken from the configuration unless overridden with --bucket flag.`,
	Example: `  # Archives in the configured bucket
  spbackup archives

  # Archives in another bucket
  spbackup archives --bucket my-other-bucket`,
	Run: func(cmd *cobra.Command, args []string) {
		runArchives(cmd)
	},
}

func runArchives(cmd *cobra.Command) {
	client, err := s3client.New(bucketConfig(cmd))
	if err != nil {
		utils.PrintError(err, "archives")
		return
	}

	timeout, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	if isVerbose(cmd) {
		cmd.Printf("Getting archive inventory for: %s\n", getBucketName(cmd))
	}

	inventory, err := client.Inventory(ctx)
	if err != nil {
		utils.PrintError(err, "archives")
		return
	}

	if err := utils.PrintJSON(inventory); err != nil {
		utils.PrintError(err, "archives")
		return
	}

	if isVerbose(cmd) {
		cmd.Printf("Found %d archives for %d sites\n", inventory.ObjectCount, len(inventory.Sites))
	}
}

func init() {
	archivesCmd.Flags().Int("timeout", 300, "Timeout in seconds for the operation")
}
