package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"storyqa/pkg/config"
)

func newSecretsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the encrypted secrets file",
		Long: fmt.Sprintf(`Secrets such as %s and %s are kept in .storyqa/%s, encrypted with a password.
Set %s to skip the password prompt.`, config.SecretJiraAPIToken, config.SecretModelAPIKey, config.SecretsFileName, config.EnvSecretsPassword),
	}
	cmd.AddCommand(newSecretsSetCmd(root), newSecretsListCmd(root), newSecretsDeleteCmd(root))
	return cmd
}

// openSecrets loads the store for editing. A new file asks for its
// password twice.
func openSecrets(root *rootOptions) (*config.SecretStore, string, error) {
	cfg, err := config.Load(root.projectDir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	store := config.NewSecretStore(cfg.ConfigDir())

	password := os.Getenv(config.EnvSecretsPassword)
	if password == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, "", fmt.Errorf("no terminal to ask for the password; set %s", config.EnvSecretsPassword)
		}
		if store.Exists() {
			password, err = readPassword("Secrets password: ")
		} else {
			password, err = readNewPassword()
		}
		if err != nil {
			return nil, "", err
		}
	}

	if store.Exists() {
		if err := store.Unlock(password); err != nil {
			return nil, "", fmt.Errorf("failed to unlock secrets: %w", err)
		}
	}
	return store, password, nil
}

func newSecretsSetCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set NAME [VALUE]",
		Short: "Store a secret (prompts for the value when omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, password, err := openSecrets(root)
			if err != nil {
				return err
			}
			name := strings.TrimSpace(args[0])
			var value string
			if len(args) == 2 {
				value = args[1]
			} else {
				if value, err = readPassword(name + ": "); err != nil {
					return err
				}
			}
			if value == "" {
				return fmt.Errorf("empty value for %s", name)
			}

			store.Set(name, value)
			if err := store.Save(password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to %s\n", name, store.Path())
			return nil
		},
	}
}

func newSecretsListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored secret names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := openSecrets(root)
			if err != nil {
				return err
			}
			names := store.Names()
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No secrets stored.")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newSecretsDeleteCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Remove a stored secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, password, err := openSecrets(root)
			if err != nil {
				return err
			}
			store.Delete(args[0])
			if err := store.Save(password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
