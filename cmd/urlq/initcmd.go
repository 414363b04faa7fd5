package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/urlq-dev/urlq/internal/config"
	"github.com/urlq-dev/urlq/internal/errors"
)

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default urlq.json to the working directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			path := filepath.Join(wd, config.FileName)
			if _, err := os.Stat(path); err == nil && !force {
				return errors.New(errors.CodeConfigInvalid).
					WithDetail(config.FileName + " already exists").
					WithSuggestion("Pass --force to overwrite")
			}
			cfg := config.New()
			cfg.Metrics.Enabled = true
			if err := cfg.SaveTo(path); err != nil {
				return err
			}
			cmd.Printf("wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing urlq.json")

	return cmd
}
