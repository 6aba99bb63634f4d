package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tidy-go/internal/app"
	"tidy-go/internal/config"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Back up the rules and history ledger",
}

var snapshotKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the key pair for encrypted snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		pass, err := readPassphrase(cmd, "New passphrase: ")
		if err != nil {
			return err
		}
		again, err := readPassphrase(cmd, "Repeat passphrase: ")
		if err != nil {
			return err
		}
		if pass != again {
			return errors.New("passphrases do not match")
		}
		if err := app.SetupKeys(cfg, pass); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Keys written to %s and %s\n", cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

var snapshotPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload the ledger now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "snapshot push", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		version, err := a.PushSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pushed ledger version %d\n", version)
		return nil
	},
}

var snapshotStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Compare the local ledger with the stored snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "snapshot status", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		local, remote, err := a.SnapshotStatus(cmd.Context())
		if err != nil {
			return err
		}
		status := map[string]int64{"local": local, "remote": remote}
		return render(cmd, status, func(w io.Writer) {
			state := green("up to date")
			if local > remote {
				state = yellow("local changes not pushed")
			}
			fmt.Fprintf(w, "local %d, remote %d: %s\n", local, remote, state)
		})
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace the local ledger with the stored snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		ok, err := confirm(cmd, "Replace the local rules and history with the snapshot?")
		if err != nil || !ok {
			return err
		}
		version, err := app.RestoreSnapshot(cmd.Context(), cfg, func() (string, error) {
			return readPassphrase(cmd, "Passphrase: ")
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored ledger version %d\n", version)
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration initialized at %s\n", defaults["config_path"])
		fmt.Fprintf(cmd.OutOrStdout(), "Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		return render(cmd, cfg, func(w io.Writer) {
			fmt.Fprintf(w, "# %s\n", faint(path))
			m := &config.Manager{}
			if err := m.Write(w, cfg); err != nil {
				fmt.Fprintf(w, "%s %v\n", red("error:"), err)
			}
		})
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotKeygenCmd)
	snapshotCmd.AddCommand(snapshotPushCmd)
	snapshotCmd.AddCommand(snapshotStatusCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(configCmd)
}
