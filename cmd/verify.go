package cmd

import (
	"github.com/spf13/cobra"

	"spbackup/pkg/utils"
)

var verifyCmd = &cobra.Command{
	Use:   "verify ARCHIVE",
	Short: "List the contents of a site archive",
	Long: `Read a site archive end to end and print its entries and totals as JSON.
A truncated or corrupt archive is reported as an error.`,
	Example: `  # Check last night's archive
  spbackup verify /root/data/hr_20240301_020000.tar.gz

  # Totals only
  spbackup verify /root/data/hr_20240301_020000.tar.gz --summary`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runVerify(cmd, args)
	},
}

func runVerify(cmd *cobra.Command, args []string) {
	if err := utils.ValidatePaths(args); err != nil {
		utils.PrintError(err, "verify")
		return
	}

	listing, err := utils.ListTarGz(args[0])
	if err != nil {
		utils.PrintError(err, "verify")
		return
	}

	if summary, _ := cmd.Flags().GetBool("summary"); summary {
		listing.Entries = nil
	}

	if err := utils.PrintJSON(listing); err != nil {
		utils.PrintError(err, "verify")
		return
	}

	if isVerbose(cmd) {
		cmd.Printf("Archive %s holds %d files in %d folders\n", args[0], listing.FileCount, listing.DirCount)
	}
}

func init() {
	verifyCmd.Flags().Bool("summary", false, "Print totals without the entry list")
}
