package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"queryconsole/internal/config"
	"queryconsole/internal/log"
	"queryconsole/internal/session"
	"queryconsole/internal/ui"
)

const localConfigFile = ".queryconsole.yaml"

func init() {
	// Query the terminal background before bubbletea owns stdin, so the OSC 11
	// reply cannot leak into the query box.
	_ = lipgloss.HasDarkBackground()
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:   "queryconsole",
		Short: "Interactive terminal console for an external database executable",
		Long: `queryconsole starts the database executable found in the working directory,
sends each query typed into the input box to its standard input, and streams
its standard output and standard error into a scrolling transcript.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			applyNegatedFlags(cmd, v)
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return runApp(cfg)
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./"+localConfigFile+" or ~/.config/queryconsole/config.yaml)")
	// Persistent so `config show` reflects them too.
	pf := root.PersistentFlags()
	pf.StringP("dir", "d", "", "directory containing the database executable")
	pf.StringP("executable", "e", "", "database executable name (default \"Database\")")
	pf.Bool("debug", false, "write a debug log")
	pf.String("log-file", "", "debug log path (default \"queryconsole.log\")")
	root.Flags().Bool("no-alt-screen", false, "render inline instead of the alternate screen")
	root.Flags().Bool("no-mouse", false, "disable mouse support")

	_ = v.BindPFlag("dir", pf.Lookup("dir"))
	_ = v.BindPFlag("executable", pf.Lookup("executable"))
	_ = v.BindPFlag("debug", pf.Lookup("debug"))
	_ = v.BindPFlag("log_file", pf.Lookup("log-file"))

	root.AddCommand(newConfigCmd(v))
	return root
}

// initConfig layers defaults, the config file and QUERYCONSOLE_* env vars.
// Lookup order without --config:
// 1. ./.queryconsole.yaml
// 2. ~/.config/queryconsole/config.yaml
func initConfig(v *viper.Viper, cfgFile string) error {
	config.SetDefaults(v)
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", cfgFile, err)
		}
		return nil
	}

	if _, err := os.Stat(localConfigFile); err == nil {
		v.SetConfigFile(localConfigFile)
	} else {
		home, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(home, ".config", "queryconsole"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
		// No config file anywhere: defaults and env only.
	}
	return nil
}

func applyNegatedFlags(cmd *cobra.Command, v *viper.Viper) {
	if off, _ := cmd.Flags().GetBool("no-alt-screen"); off {
		v.Set("ui.alt_screen", false)
	}
	if off, _ := cmd.Flags().GetBool("no-mouse"); off {
		v.Set("ui.mouse", false)
	}
}

func programOptions(cfg config.Config) []tea.ProgramOption {
	var opts []tea.ProgramOption
	if cfg.UI.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if cfg.UI.Mouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return opts
}

func runApp(cfg config.Config) error {
	if cfg.Debug {
		cleanup, err := log.Init(cfg.LogFile)
		if err != nil {
			return err
		}
		defer cleanup()
	}

	s := session.New(session.Options{
		Dir:              cfg.Dir,
		Name:             cfg.Executable,
		Args:             cfg.Args,
		TerminateTimeout: cfg.TerminateTimeout,
	})
	log.Info(log.CatSession, "session created", "session", s.ID(), "dir", cfg.Dir, "executable", cfg.Executable)

	model := ui.New(s, ui.Options{
		Name:             cfg.Executable,
		SessionID:        s.ID(),
		PumpInterval:     cfg.PumpInterval,
		TerminateTimeout: cfg.TerminateTimeout,
		InputHeight:      cfg.UI.InputHeight,
	})
	_, runErr := tea.NewProgram(model, programOptions(cfg)...).Run()

	// The window normally terminates the child itself; this covers a program
	// that ended any other way. No-op once the child is gone.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.TerminateTimeout+2*time.Second)
	defer cancel()
	if err := s.Terminate(ctx); err != nil {
		log.ErrorErr(log.CatSession, "terminate on exit failed", err, "session", s.ID())
	}

	if runErr != nil {
		return fmt.Errorf("running program: %w", runErr)
	}
	return nil
}
