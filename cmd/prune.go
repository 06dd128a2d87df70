package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"spbackup/internal/s3client"
	"spbackup/pkg/utils"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete uploaded archives older than specified days",
	Long: `Delete site archives in the S3 bucket that are older than the specified number of days.

The command will:
- List all archives below the prefix (S3_PREFIX unless --prefix is given)
- Filter archives older than the cutoff date
- Delete matching archives in batches
- Return detailed information about the deletion operation

Only *.tar.gz objects are considered.

WARNING: This operation is irreversible. Deleted archives cannot be recovered.`,
	Example: `  # Delete archives older than 30 days
  spbackup prune --days 30

  # Only one site's archives
  spbackup prune --days 7 --prefix "backups/hr"

  # See what would be deleted
  spbackup prune --days 30 --dry-run

  # Use different bucket without prompting
  spbackup prune --days 30 --bucket my-other-bucket --confirm`,
	Run: func(cmd *cobra.Command, args []string) {
		runPrune(cmd)
	},
}

func runPrune(cmd *cobra.Command) {
	days, _ := cmd.Flags().GetInt("days")
	prefix, _ := cmd.Flags().GetString("prefix")
	confirm, _ := cmd.Flags().GetBool("confirm")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if days <= 0 {
		utils.PrintError(fmt.Errorf("days must be greater than 0"), "prune")
		return
	}

	if !confirm && !dryRun {
		cutoffDate := time.Now().AddDate(0, 0, -days)

		fmt.Printf("WARNING: This will permanently delete archives older than %d days (%s) from bucket '%s'",
			days, cutoffDate.Format("2006-01-02"), getBucketName(cmd))
		if prefix != "" {
			fmt.Printf(" under '%s'", prefix)
		}
		fmt.Println()
		fmt.Print("Are you sure? (yes/no): ")

		var response string
		fmt.Scanln(&response)
		if r := strings.ToLower(response); r != "yes" && r != "y" {
			fmt.Println("Operation cancelled.")
			return
		}
	}

	client, err := s3client.New(bucketConfig(cmd))
	if err != nil {
		utils.PrintError(err, "prune")
		return
	}

	timeout, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	if isVerbose(cmd) {
		cmd.Printf("Deleting archives older than %d days from bucket: %s\n", days, getBucketName(cmd))
		if dryRun {
			cmd.Println("DRY RUN MODE: No archives will actually be deleted")
		}
	}

	result, err := client.PruneOldArchives(ctx, prefix, days, dryRun)
	if err != nil {
		utils.PrintError(err, "prune")
		return
	}

	if err := utils.PrintJSON(result); err != nil {
		utils.PrintError(err, "prune")
		return
	}

	if isVerbose(cmd) {
		cmd.Println("Prune completed successfully")
	}
}

func init() {
	pruneCmd.Flags().IntP("days", "d", 0, "Delete archives older than this many days (required)")
	if err := pruneCmd.MarkFlagRequired("days"); err != nil {
		utils.PrintError(err, "prune")
		return
	}

	pruneCmd.Flags().StringP("prefix", "p", "", "Key prefix to search (default: S3_PREFIX)")
	pruneCmd.Flags().Bool("confirm", false, "Skip confirmation prompt")
	pruneCmd.Flags().Bool("dry-run", false, "Show what would be deleted without actually deleting")
	pruneCmd.Flags().Int("timeout", 1800, "Timeout in seconds for the operation (default: 30 minutes)")

	pruneCmd.SetUsageTemplate(usageTemplate)
}
