package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "keepsync",
	Short: "KeepSync is a zero-knowledge personal config sync service",
	Long: `A zero-knowledge synchronization service for personal configuration.
Clients encrypt their state with a password-derived key before upload;
the server only ever stores opaque blobs.
Complete documentation is available at https://github.com/jmarlow/keepsync`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
