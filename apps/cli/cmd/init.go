package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitexec/packages/core/config"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter .hitexec.yaml",
	Long: `Write a .hitexec.yaml with the default settings to the current directory.

Examples:
  hitexec init
  hitexec init --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	return writeStarterConfig(cmd, filepath.Join(cwd, ".hitexec.yaml"), forceInit)
}

func writeStarterConfig(cmd *cobra.Command, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return usageError(fmt.Errorf("file already exists: %s (use --force to overwrite)", path))
		}
	}

	cfg := config.DefaultConfig()
	cfg.StatusCodes = defaultExpectStatus
	cfg.Headers = map[string]string{"User-Agent": "hitexec/" + version}
	cfg.History = filepath.Join(".hitexec", "history.db")

	if err := os.MkdirAll(filepath.Join(filepath.Dir(path), ".hitexec"), 0755); err != nil {
		return fmt.Errorf("failed to create .hitexec directory: %w", err)
	}
	if err := cfg.SaveConfig(path); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", path)
	return nil
}
