package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/repo-edu/repo-edu-sub001/internal/config"
)

var initDefaults bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the redu configuration with an interactive wizard",
	Long:  `Runs an interactive wizard that asks for the Git platform and LMS and writes the config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if initDefaults {
			if err := base.Validate(); err != nil {
				return err
			}
			if err := base.Save(cfgFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", cfgFile)
			return nil
		}
		_, err = config.RunWizard(base, cfgFile, os.Stdout)
		return err
	},
}

func init() {
	initCmd.Flags().BoolVar(&initDefaults, "defaults", false, "write defaults (plus REDU_* overrides) without prompting")
	rootCmd.AddCommand(initCmd)
}
