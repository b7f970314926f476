package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/truthordare/gameclient/internal/api"
	"github.com/truthordare/gameclient/internal/identity"
	"github.com/truthordare/gameclient/internal/protocol"
)

type Config struct {
	serverURL string
	apiURL    string
	stateDir  string
	verbose   bool
}

func (c *Config) validate() error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid --server value: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("--server must be a ws:// or wss:// URL, got %q", c.serverURL)
	}
	if _, err := url.Parse(c.apiURL); err != nil {
		return fmt.Errorf("invalid --api value: %w", err)
	}
	if c.stateDir == "" {
		return errors.New("--state-dir must not be empty")
	}
	return nil
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tord"
	}
	return filepath.Join(home, ".tord")
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TORD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "tord",
		Short:         "Terminal client for a shared Truth or Dare session.",
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	fs := cmd.PersistentFlags()
	fs.StringVarP(&cfg.serverURL, "server", "s", "ws://localhost:5000/ws", "push channel URL (env: TORD_SERVER)")
	fs.StringVarP(&cfg.apiURL, "api", "a", "http://localhost:5000", "REST API base URL (env: TORD_API)")
	fs.StringVar(&cfg.stateDir, "state-dir", defaultStateDir(), "directory holding the persisted identity (env: TORD_STATE_DIR)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TORD_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(newRunCmd(cfg), newRegisterCmd(cfg), newQuestionCmd(cfg))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("tord v{{.Version}}\n")

	return cmd
}

func newRunCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the session and play.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return runClient(cmd.Context(), cfg)
		},
	}
}

func newRegisterCmd(cfg *Config) *cobra.Command {
	var name, gender string
	var age int

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a player record and persist it locally.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			if name == "" {
				return errors.New("--name is required")
			}

			client := api.NewClient(cfg.apiURL)
			ident, err := client.CreatePlayer(cmd.Context(), name, age, gender)
			if err != nil {
				return fmt.Errorf("register player: %w", err)
			}

			store := identity.NewFileStore(cfg.stateDir)
			if err := store.Save(ident); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "registered as %s (id %s)\n", ident.Name, ident.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().IntVar(&age, "age", 0, "age")
	cmd.Flags().StringVar(&gender, "gender", "", "gender (male, female or other)")

	return cmd
}

func newQuestionCmd(cfg *Config) *cobra.Command {
	var text, kind, category string
	var difficulty int

	cmd := &cobra.Command{
		Use:   "add-question",
		Short: "Submit a new question to the shared pool.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}

			client := api.NewClient(cfg.apiURL)
			if err := client.CreateQuestion(cmd.Context(), text, kind, category, difficulty); err != nil {
				return fmt.Errorf("add question: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "question added")
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "question text")
	cmd.Flags().StringVar(&kind, "type", protocol.KindTruth, "question type (truth or dare)")
	cmd.Flags().StringVar(&category, "category", "all", "category ("+strings.Join(protocol.Categories, ", ")+")")
	cmd.Flags().IntVar(&difficulty, "difficulty", 1, "difficulty from 1 to 5")

	return cmd
}
