package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"spbackup/internal/models"
	"spbackup/internal/s3client"
	"spbackup/pkg/utils"
)

var uploadCmd = &cobra.Command{
	Use:   "upload ARCHIVE...",
	Short: "Upload site archives to S3",
	Long: `Upload existing site archives to the S3 bucket, for example after the
automatic upload of a run failed.

Each archive is stored as <prefix>/<site>/<file name>. The site is taken from
the archive name (<site>_<YYYYMMDD>_<HHMMSS>.tar.gz) unless --site is given.`,
	Example: `  # Re-upload last night's archive
  spbackup upload /root/data/hr_20240301_020000.tar.gz

  # Upload several archives, showing the keys first
  spbackup upload /root/data/*.tar.gz --dry-run

  # Upload under an explicit site name to another bucket
  spbackup upload old-export.tar.gz --site legal --bucket my-other-bucket --confirm`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runUpload(cmd, args)
	},
}

func runUpload(cmd *cobra.Command, args []string) {
	siteFlag, _ := cmd.Flags().GetString("site")
	confirm, _ := cmd.Flags().GetBool("confirm")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if err := utils.ValidatePaths(args); err != nil {
		utils.PrintError(err, "upload")
		return
	}

	sites := make([]string, len(args))
	for i, path := range args {
		if !strings.HasSuffix(path, utils.ArchiveExtension) {
			utils.PrintError(fmt.Errorf("%s is not a %s archive", path, utils.ArchiveExtension), "upload")
			return
		}
		sites[i] = siteFlag
		if sites[i] == "" {
			sites[i] = siteFromArchive(path)
		}
		if sites[i] == "" {
			utils.PrintError(fmt.Errorf("cannot tell the site of %s, use --site", path), "upload")
			return
		}
	}

	if dryRun {
		if err := utils.PrintJSON(dryRunUploads(args, sites, getBucketName(cmd))); err != nil {
			utils.PrintError(err, "upload")
		}
		return
	}

	if !confirm {
		fmt.Printf("Upload operation summary:\n")
		fmt.Printf("  Bucket: %s\n", getBucketName(cmd))
		fmt.Printf("  Archives: %v\n", args)

		fmt.Print("Continue with upload? (y/N): ")
		var response string
		fmt.Scanln(&response)
		if r := strings.ToLower(response); r != "y" && r != "yes" {
			fmt.Println("Upload cancelled.")
			return
		}
	}

	client, err := s3client.New(bucketConfig(cmd))
	if err != nil {
		utils.PrintError(err, "upload")
		return
	}

	timeout, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	results := make([]*models.UploadResult, 0, len(args))
	for i, path := range args {
		if isVerbose(cmd) {
			cmd.Printf("Uploading %s for site %s\n", path, sites[i])
		}
		result, err := client.UploadArchive(ctx, path, sites[i])
		if err != nil {
			utils.PrintError(err, "upload")
			return
		}
		results = append(results, result)
	}

	if err := utils.PrintJSON(results); err != nil {
		utils.PrintError(err, "upload")
		return
	}

	if isVerbose(cmd) {
		cmd.Println("Upload operation completed successfully")
	}
}

// siteFromArchive strips the run timestamp and extension from an archive
// name: hr_20240301_020000.tar.gz is hr. Other names give "".
func siteFromArchive(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), utils.ArchiveExtension)
	stampLen := len("_") + len(utils.RunTimestampLayout)
	if len(name) <= stampLen {
		return ""
	}
	site, stamp := name[:len(name)-stampLen], name[len(name)-stampLen+1:]
	if name[len(name)-stampLen] != '_' {
		return ""
	}
	if _, err := time.Parse(utils.RunTimestampLayout, stamp); err != nil {
		return ""
	}
	return site
}

func dryRunUploads(paths, sites []string, bucketName string) []models.UploadResult {
	items := make([]models.UploadResult, 0, len(paths))
	for i, path := range paths {
		items = append(items, models.UploadResult{
			BucketName:     bucketName,
			Key:            s3client.ArchiveKey(cfg.Prefix, sites[i], path),
			LocalPath:      path,
			UploadDuration: "0s",
		})
	}
	return items
}

func init() {
	uploadCmd.Flags().StringP("site", "s", "", "Site name for the key (default: taken from the archive name)")
	uploadCmd.Flags().Bool("confirm", false, "Skip confirmation prompt")
	uploadCmd.Flags().Bool("dry-run", false, "Show the keys without uploading")
	uploadCmd.Flags().Int("timeout", 3600, "Timeout in seconds for the operation (default: 1 hour)")

	uploadCmd.SetUsageTemplate(usageTemplate)
}
