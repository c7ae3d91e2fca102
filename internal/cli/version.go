package cli

import (
	"fmt"
	"runtime"

	"github.com/JongoDB/arc4de/internal/build"

	"github.com/spf13/cobra"
)

func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "ARC4DE version information",
		Long:  `Print the version information of ARC4DE`,
		Run: func(cmd *cobra.Command, args []string) {
			version()
		},
	}
}

func version() {
	fmt.Printf("ARC4DE v%s (Go version: %s)\n", build.Version, runtime.Version())
}
