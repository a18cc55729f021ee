package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/deepcrawl/internal/config"
)

//go:embed templates/deepcrawl.yaml
var configTemplate embed.FS

const templatePath = "templates/deepcrawl.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a deepcrawl configuration file",
		Long: `Init writes a commented .deepcrawl configuration file.

The generated file documents every section (crawl, rate_limit, proxies,
dispatcher, scoring) with its default value, plus an example of per-site
overrides.

Examples:
  # Create .deepcrawl in the current directory
  deepcrawl init

  # Create the file at a specific path
  deepcrawl init -o ~/.config/deepcrawl/config.yaml

  # Overwrite an existing file
  deepcrawl init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// The file may hold proxy passwords.
	if err := os.WriteFile(outputPath, content, 0o600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure:")
	fmt.Fprintln(out, "  - crawl strategy, depth and page budget")
	fmt.Fprintln(out, "  - rate limiting, proxies and concurrency")
	fmt.Fprintln(out, "  - per-site patterns and headers")

	return nil
}
