package main

import (
	"fmt"
	"os"

	"github.com/JongoDB/arc4de/internal/app"
	"github.com/JongoDB/arc4de/internal/cli"
)

func main() {
	rootCmd := app.ARC4DE()
	rootCmd.AddCommand(cli.Version())
	rootCmd.AddCommand(cli.GenConfig())
	rootCmd.AddCommand(cli.CheckConfig())
	rootCmd.AddCommand(cli.GenToken())
	rootCmd.AddCommand(cli.Connect())
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
}
