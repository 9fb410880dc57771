package cli

import (
	"fmt"
	"net/http"
	"os"

	"github.com/keyforge/keyforge/config"
	"github.com/keyforge/keyforge/forge/keytool"
	"github.com/keyforge/keyforge/forge/pipeline"
	"github.com/keyforge/keyforge/forge/session"
	"github.com/keyforge/keyforge/forge/store"
	"github.com/keyforge/keyforge/forge/synth"
	"github.com/keyforge/keyforge/httpapi"
	"github.com/keyforge/keyforge/logging"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "keyforge",
	Short: "Generate keystore/certificate pairs on request",
	Long: `keyforge turns a package name into a ready-to-use keystore and
its exported PEM certificate, signed with a plausible random identity,
or ingests an uploaded keystore and exports its certificate.

Requests arrive through a chat-style HTTP API (serve) or directly from
the command line (generate). All key material is produced by the
external keytool binary.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			logging.Initialize(logging.LevelDebug, nil, nil)
		} else if verbose {
			logging.Initialize(logging.LevelInfo, nil, nil)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var verbose bool
var debug bool

func buildPipeline(cfg *config.Config, messenger pipeline.Messenger) *pipeline.Pipeline {
	st := store.New(store.NewNativeFs("."), cfg.GeneratedDir, cfg.SupersededDir)

	tool := keytool.New(
		keytool.ExecRunner{Timeout: cfg.Keytool.Timeout()},
		keytool.Options{
			Path:         cfg.Keytool.Path,
			ValidityDays: cfg.Keytool.ValidityDays,
			KeySize:      cfg.Keytool.KeySize,
			Algorithm:    cfg.Keytool.KeyAlgorithm,
		})

	return pipeline.New(st, tool, synth.New(), messenger, pipeline.Options{
		DefaultAlias:     cfg.Defaults.Alias,
		DefaultPassword:  cfg.Defaults.Password,
		PersistArtifacts: cfg.Persist(),
	})
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "a LOT more verbose output (overrides -v)")

	var configPath string

	cmdServe := cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP transport",
		Long:  "Serves the chat-style HTTP API and processes generation requests until terminated.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(configPath)
			if err != nil {
				fmt.Printf("can't load config: %s\n", err.Error())
				os.Exit(1)
			}

			if len(cfg.LogFile) > 0 {
				if err := logging.InitializeWithFile(logging.ParseLevel(cfg.LogLevel), cfg.LogFile); err != nil {
					fmt.Printf("can't set up logging: %s\n", err.Error())
					os.Exit(1)
				}
				defer logging.Close()
			}

			board := httpapi.NewSwitchboard()
			pipe := buildPipeline(cfg, board)
			machine := session.NewMachine(pipe.Exists)
			server := httpapi.New(machine, pipe, board, cfg.Defaults.Alias, cfg.Defaults.Password)

			logging.Infof("listening on %s", cfg.Listen)
			if err := http.ListenAndServe(cfg.Listen, server); err != nil {
				fmt.Printf("server error: %s\n", err.Error())
				os.Exit(1)
			}
		},
	}
	cmdServe.Flags().StringVarP(&configPath, "config", "c", "keyforge.yaml", "config file")

	var genConfigPath string
	cmdGenerate := cobra.Command{
		Use:   "generate <package-name>",
		Short: "Generate a keystore/certificate pair once",
		Long:  "Runs the generation pipeline for one package name and prints the artifact paths.",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(genConfigPath)
			if err != nil {
				fmt.Printf("can't load config: %s\n", err.Error())
				os.Exit(1)
			}

			pipe := buildPipeline(cfg, consoleMessenger{})

			err = pipe.Run(cmd.Context(), pipeline.Request{
				Subject:     "cli",
				PackageName: args[0],
				Requester: store.RequesterInfo{
					UserID:      "cli",
					FullName:    "command line",
					RequestedAt: timeNow(),
				},
			})
			if err != nil {
				os.Exit(1)
			}
		},
	}
	cmdGenerate.Flags().StringVarP(&genConfigPath, "config", "c", "keyforge.yaml", "config file")

	cmdDoc := cobra.Command{
		Use:   "doc",
		Short: "Show Documentation",
		Long:  "Get help on various topics.",
	}

	cmdDoc.AddCommand(&cobra.Command{
		Use:   "example",
		Short: "Show an example config file",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.Example())
		},
	})

	rootCmd.AddCommand(&cmdServe)
	rootCmd.AddCommand(&cmdGenerate)
	rootCmd.AddCommand(&cmdDoc)
}
