// Package cmd implements the command-line interface for starter.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/starterkit/starter/internal/client"
	"github.com/starterkit/starter/internal/telemetry"
	"github.com/starterkit/starter/internal/utils"
)

var (
	cfgFile        string
	verbose        bool
	debug          bool
	trace          bool
	traceExporter  string
	traceEndpoint  string
	traceSample    float64
	tracerShutdown func(context.Context) error
	logger         *zerolog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "starter",
	Short: "Generate projects from an Initializr service",
	Long: `starter generates new projects from a Spring Initializr compatible service.

It reads the service metadata, asks for every option the service exposes
(or takes them from flags, presets and configuration) and downloads the
generated project, unpacking it when the destination is a directory.

Get started with: starter init`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = utils.NewLogger(debug)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
		zerolog.TimeFieldFormat = time.RFC3339

		trace = viper.GetBool("trace")
		traceExporter = viper.GetString("trace_exporter")
		traceEndpoint = viper.GetString("trace_endpoint")
		traceSample = viper.GetFloat64("trace_sample")

		if trace {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			tracerShutdown, err = telemetry.Setup(ctx, telemetry.Config{
				ServiceName:    "starter",
				ServiceVersion: Version,
				Exporter:       traceExporter,
				Endpoint:       traceEndpoint,
				SampleRate:     traceSample,
			})
			if err != nil {
				logger.Error().Err(err).Msg("failed to set up tracer")
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if tracerShutdown != nil {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := tracerShutdown(ctx); err != nil {
				GetLogger().Warn().Err(err).Msg("failed to flush traces")
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Errors are printed before being returned.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("✗ %v", presentError(err)))
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/starter/config.toml or $HOME/.starter.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug mode")
	rootCmd.PersistentFlags().BoolVar(&trace, "trace", false, "enable tracing")
	rootCmd.PersistentFlags().StringVar(&traceExporter, "trace-exporter", telemetry.ExporterConsole, "trace exporter: console|otlp|file")
	rootCmd.PersistentFlags().StringVar(&traceEndpoint, "trace-endpoint", "", "OTLP endpoint URL or file path (for file exporter)")
	rootCmd.PersistentFlags().Float64Var(&traceSample, "trace-sample", 1.0, "trace sample rate (0.0-1.0)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("trace", rootCmd.PersistentFlags().Lookup("trace"))
	_ = viper.BindPFlag("trace_exporter", rootCmd.PersistentFlags().Lookup("trace-exporter"))
	_ = viper.BindPFlag("trace_endpoint", rootCmd.PersistentFlags().Lookup("trace-endpoint"))
	_ = viper.BindPFlag("trace_sample", rootCmd.PersistentFlags().Lookup("trace-sample"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigType("toml")
		viper.SetConfigName("config")
		viper.AddConfigPath(filepath.Join(xdg.ConfigHome, "starter"))
		// $HOME/.starter.toml is only used when there is no XDG config
		if !utils.FileExists(filepath.Join(xdg.ConfigHome, "starter", "config.toml")) {
			if home, err := os.UserHomeDir(); err == nil && utils.FileExists(filepath.Join(home, ".starter.toml")) {
				viper.SetConfigFile(filepath.Join(home, ".starter.toml"))
			}
		}
	}

	viper.SetEnvPrefix("STARTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && cfgFile != "" {
			fmt.Fprintln(os.Stderr, color.YellowString("Could not read config file %s: %v", cfgFile, err))
		}
	} else if verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("url", client.DefaultBaseURL)
	v.SetDefault("non_interactive", false)
	v.SetDefault("send_action_param", true)
	v.SetDefault("timeout", time.Duration(0))
	v.SetDefault("trace_exporter", telemetry.ExporterConsole)
	v.SetDefault("trace_sample", 1.0)
}

// GetLogger returns the configured logger
func GetLogger() *zerolog.Logger {
	if logger == nil {
		if l, err := utils.NewLogger(false); err == nil {
			logger = l
		} else {
			l := zerolog.New(os.Stderr).With().Timestamp().Logger()
			logger = &l
		}
	}
	return logger
}
