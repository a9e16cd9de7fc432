package version

import (
	"fmt"

	"github.com/plotwatch/plotwatch/internal/version"
	"github.com/spf13/cobra"
)

func NewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the plotwatch version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "plotwatch version", version.Full())
		},
	}
}
