/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	clihander "github.com/apex/log/handlers/cli"
	"github.com/blacktop/objcpatch/internal/colors"
	"github.com/blacktop/objcpatch/internal/config"
	"github.com/blacktop/objcpatch/pkg/objcpatch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// Verbose boolean flag for verbose logging
	Verbose bool
	// Color boolean flag for colorized output
	Color bool
	// AppVersion stores the tool's version
	AppVersion string
	// AppBuildTime stores the tool's build time
	AppBuildTime string
)

func confirm(path string) bool {
	yes := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("You are about to overwrite %s. Continue?", filepath.Base(path)),
	}
	survey.AskOne(prompt, &yes)
	return yes
}

// colorSetting returns the --color/CLICOLOR override, or nil to keep the TTY detection.
func colorSetting(v *viper.Viper) *bool {
	if !v.IsSet("color") {
		return nil
	}
	enabled := v.GetBool("color")
	return &enabled
}

// replaceArgs points users of the `--replace PATTERN REPLACEMENT` form at the two value
// syntax before cobra rejects the extra positional argument.
func replaceArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 2 {
		if r, err := cmd.Flags().GetStringSlice("replace"); err == nil && len(r) == 1 {
			return fmt.Errorf("--replace takes two values: use --replace %s --replace %s (or --replace %s,%s)",
				r[0], args[1], r[0], args[1])
		}
	}
	return cobra.ExactArgs(1)(cmd, args)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "objcpatch <MACHO>",
	Short: "Patch Objective-C class and category names in MachO binaries",
	Long: heredoc.Doc(`
		Rename the Objective-C class names (__objc_classname) and category names
		(reached through __objc_catlist) of a MachO binary in-place.

		Names are either replaced with random alphanumeric strings of the same length,
		or every occurrence of PATTERN is replaced with REPLACEMENT (which must have the
		same length). The binary is never resized.`),
	Example: heredoc.Doc(`
		# Randomize every class and category name except AppDelegate
		❯ objcpatch MyApp --exclude AppDelegate

		# Move classes from the "ABC" prefix to "XYZ"
		❯ objcpatch MyApp --replace ABC --replace XYZ
		❯ objcpatch MyApp --replace ABC,XYZ

		# Show what would be renamed and save the rename map
		❯ objcpatch MyApp --dry-run --map renames.yaml`),
	Args:          replaceArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {

		if Verbose {
			log.SetLevel(log.DebugLevel)
		}
		colors.Init(colorSetting(viper.GetViper()))

		conf, err := config.LoadConfig(viper.GetViper(), "objcpatch")
		if err != nil {
			return err
		}

		plan, err := conf.Plan(filepath.Clean(args[0]))
		if err != nil {
			return err
		}
		if viper.GetBool("objcpatch.confirm") {
			plan.Confirm = confirm
		}

		patcher, err := objcpatch.NewPatcher(plan)
		if err != nil {
			return err
		}

		if _, err := patcher.Run(); err != nil {
			return err
		}

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = AppVersion
	if AppBuildTime != "" {
		rootCmd.Version += " (" + AppBuildTime + ")"
	}
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	log.SetHandler(clihander.Default)

	cobra.OnInitialize(initConfig)

	// Flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/objcpatch/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "V", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&Color, "color", false, "colorize output")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("color", rootCmd.PersistentFlags().Lookup("color"))
	viper.BindEnv("color", "CLICOLOR")

	rootCmd.Flags().BoolP("quiet", "q", false, "Suppress output messages")
	rootCmd.Flags().BoolP("dry-run", "n", false, "Perform a dry run without modifying the file")
	rootCmd.Flags().StringSliceP("exclude", "e", []string{}, "Class name to exclude from patching (can be repeated)")
	rootCmd.Flags().StringSliceP("replace", "r", []string{}, "Replace PATTERN with REPLACEMENT of the same length (--replace PATTERN --replace REPLACEMENT or --replace PATTERN,REPLACEMENT)")
	rootCmd.Flags().Uint64("seed", 0, "Seed for the random name generator (0 picks a random seed)")
	rootCmd.Flags().StringP("map", "m", "", "Write the rename map (YAML) to this file")
	rootCmd.Flags().Bool("confirm", false, "Ask before overwriting the binary")
	viper.BindPFlag("objcpatch.quiet", rootCmd.Flags().Lookup("quiet"))
	viper.BindPFlag("objcpatch.dry-run", rootCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("objcpatch.exclude", rootCmd.Flags().Lookup("exclude"))
	viper.BindPFlag("objcpatch.replace", rootCmd.Flags().Lookup("replace"))
	viper.BindPFlag("objcpatch.seed", rootCmd.Flags().Lookup("seed"))
	viper.BindPFlag("objcpatch.map", rootCmd.Flags().Lookup("map"))
	viper.BindPFlag("objcpatch.confirm", rootCmd.Flags().Lookup("confirm"))
	rootCmd.MarkZshCompPositionalArgumentFile(1)

	rootCmd.AddCommand(a2oCmd)
	// Settings
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(filepath.Join(home, ".config", "objcpatch"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("objcpatch")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}
}
