package main

import (
	"fmt"
	"os"

	"github.com/tphakala/freshness-go/cmd"
	"github.com/tphakala/freshness-go/internal/app"
)

func main() {
	appCtx := &app.Context{}

	rootCmd := cmd.RootCommand(appCtx)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
