package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jward/lucien"
)

var (
	flagInitGlobal bool
	flagInitForce  bool
)

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a starter config file with the built-in defaults",
	RunE:  runInitConfig,
}

func init() {
	initConfigCmd.Flags().BoolVar(&flagInitGlobal, "global", false, "write the user-global config instead of ./lucien.yaml")
	initConfigCmd.Flags().BoolVar(&flagInitForce, "force", false, "overwrite an existing config file")
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	path := "lucien.yaml"
	if flagInitGlobal {
		var err error
		path, err = lucien.UserConfigPath()
		if err != nil {
			return err
		}
	}

	if _, err := os.Stat(path); err == nil && !flagInitForce {
		return fmt.Errorf("%s already exists; use --force to overwrite", path)
	}

	if err := lucien.DefaultConfig().SaveYAML(path); err != nil {
		return err
	}
	fmt.Printf("%s wrote %s\n", color.GreenString("✓"), path)
	return nil
}
