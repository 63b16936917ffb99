package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"nosql-labs/common/global"
)

var StartCmd = &cobra.Command{
	Use:     "version",
	Short:   "Get version info",
	Example: "labctl version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(global.Version)
		return nil
	},
}
