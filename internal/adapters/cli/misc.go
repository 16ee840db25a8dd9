package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/samirrijal/localshop/internal/pkg/address"
)

var slugifyCmd = &cobra.Command{
	Use:   "slugify [name]",
	Short: "Print the URL slug for a name",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(address.Slugify(strings.Join(args, " ")))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("shopctl version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(slugifyCmd, versionCmd)
}
