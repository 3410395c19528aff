package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmarlow/keepsync/crypto"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage server at-rest encryption secrets",
}

var secretGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new server secret",
	Long: `Generates a cryptographically random secret suitable for
KEEPSYNC_SERVER_SECRET. To rotate, prepend the new secret to the existing
comma-separated list; old secrets stay listed until every record has been
re-encrypted by a write.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.GenerateRandomKey()
		if err != nil {
			return fmt.Errorf("failed to generate secret: %w", err)
		}
		fmt.Println(key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(secretCmd)
	secretCmd.AddCommand(secretGenerateCmd)
}
