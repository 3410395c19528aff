package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jmarlow/keepsync/client"
	"github.com/jmarlow/keepsync/vault"
)

var (
	serverURL   string
	profilePath string
	statePath   string
	forcePush   bool
	mirrorPull  bool
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage the sync account on this device",
}

var accountRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new sync account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(profilePath); err == nil {
			return fmt.Errorf("a vault profile already exists at %s; run 'keepsync account delete' first", profilePath)
		}
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		confirm, err := readPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return errors.New("passwords do not match")
		}

		c, err := newAccountClient()
		if err != nil {
			return err
		}
		accountID, err := c.Register(cmd.Context(), password)

		var regErr *client.RegistrationError
		if errors.As(err, &regErr) {
			fmt.Printf("Account %s created locally; the sync service was unreachable.\n", regErr.AccountID)
			fmt.Println("It will be claimed on the next successful push.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Account registered: %s\n", accountID)
		fmt.Println("Keep this id; together with your password it recovers your data on any device.")
		return nil
	},
}

var accountLoginCmd = &cobra.Command{
	Use:   "login <account-id>",
	Short: "Log in to an existing sync account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}

		c, err := newAccountClient()
		if err != nil {
			return err
		}
		if err := c.Login(cmd.Context(), args[0], password, false); err != nil {
			switch {
			case errors.Is(err, client.ErrAccountNotFound):
				return errors.New("no account with that id")
			case errors.Is(err, client.ErrInvalidPassword):
				return errors.New("invalid password")
			}
			return err
		}
		fmt.Println("Logged in; local state restored from the sync service.")
		return nil
	},
}

var accountPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push local state to the sync service",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := unlockedClient(cmd)
		if err != nil {
			return err
		}
		if forcePush {
			if err := c.ForcePushState(cmd.Context()); err != nil {
				return err
			}
		} else if err := c.SyncToRemote(cmd.Context(), false); err != nil {
			return err
		}
		fmt.Println("Pushed.")
		return nil
	},
}

var accountPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull state from the sync service",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := unlockedClient(cmd)
		if err != nil {
			return err
		}
		if mirrorPull {
			if err := c.ForceMirrorState(cmd.Context()); err != nil {
				return err
			}
		} else if err := c.SyncFromRemote(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Pulled.")
		return nil
	},
}

var accountDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the sync account and all local vault material",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Print("This deletes the remote record and the local vault. Type 'yes' to continue: ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.TrimSpace(answer) != "yes" {
			fmt.Println("Aborted.")
			return nil
		}

		c, err := unlockedClient(cmd)
		if err != nil {
			return err
		}
		if err := c.DeleteRemoteAccount(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Account deleted.")
		return nil
	},
}

func newAccountClient() (*client.Client, error) {
	for _, p := range []string{profilePath, statePath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	v := vault.New(profilePath)
	if err := v.Load(); err != nil && !errors.Is(err, vault.ErrNotInitialized) {
		return nil, err
	}
	store := client.NewFileStore(statePath)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return client.New(serverURL, v, store, client.WithLogger(logger)), nil
}

func unlockedClient(cmd *cobra.Command) (*client.Client, error) {
	password, err := readPassword("Password: ")
	if err != nil {
		return nil, err
	}
	c, err := newAccountClient()
	if err != nil {
		return nil, err
	}
	ok, err := c.Unlock(cmd.Context(), password)
	if err != nil {
		if errors.Is(err, vault.ErrNotInitialized) {
			return nil, errors.New("no account on this device; run 'keepsync account register' or 'login'")
		}
		return nil, err
	}
	if !ok {
		return nil, errors.New("invalid password")
	}
	return c, nil
}

// readPassword prompts without echo when stdin is a terminal, and falls
// back to a plain line read so the commands stay scriptable.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(raw), nil
	}
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".keepsync")
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountRegisterCmd, accountLoginCmd, accountPushCmd, accountPullCmd, accountDeleteCmd)

	dir := defaultConfigDir()
	accountCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Sync service base URL")
	accountCmd.PersistentFlags().StringVar(&profilePath, "profile", filepath.Join(dir, "profile.json"), "Path to the vault profile")
	accountCmd.PersistentFlags().StringVar(&statePath, "state", filepath.Join(dir, "state.json"), "Path to the local state file")
	accountPushCmd.Flags().BoolVar(&forcePush, "force", false, "Overwrite the remote record unconditionally")
	accountPullCmd.Flags().BoolVar(&mirrorPull, "mirror", false, "Overwrite local state unconditionally, discarding unsynced changes")
}
