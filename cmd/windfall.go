package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"Windfall/pkg/app"
	"Windfall/utilities"
)

var (
	cfgFile string
	cfg     utilities.AppConfig
	logger  *utilities.Logger
)

// rootCmd represents the base command for the Windfall CLI.
var rootCmd = &cobra.Command{
	Use:   "windfall",
	Short: "Windfall autonomous market scanner and trading bot",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A .env file can supply credentials without putting them in the
		// config file; missing .env is fine.
		if err := godotenv.Load(); err == nil {
			fmt.Println(">> Loaded environment overrides from .env")
		}

		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("json")
		viper.SetEnvPrefix("WINDFALL")
		viper.AutomaticEnv()
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("failed to unmarshal config: %w", err)
		}

		// Credentials come from the environment when not present in config.
		if cfg.Venue.APIKey == "" {
			cfg.Venue.APIKey = os.Getenv("WINDFALL_VENUE_API_KEY")
		}
		if cfg.Venue.APISecret == "" {
			cfg.Venue.APISecret = os.Getenv("WINDFALL_VENUE_API_SECRET")
		}
		if cfg.Venue.Passphrase == "" {
			cfg.Venue.Passphrase = os.Getenv("WINDFALL_VENUE_PASSPHRASE")
		}

		level, err := utilities.ParseLogLevel(cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		logger = utilities.NewLogger(level)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigChan
			logger.LogWarn("Received signal: %v, initiating graceful shutdown.", sig)
			cancel()
		}()

		return app.Run(ctx, cfg, logger)
	},
}

// Execute runs the root command.
func Execute() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.json", "config file (default is config/config.json)")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
