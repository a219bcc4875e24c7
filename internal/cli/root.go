package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ppiankov/steelminer/internal/model"
)

// Version is set at build time with -ldflags
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
	cfg     *model.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "steelminer",
	Short: "Steelminer - structured data extraction from steel literature",
	Long: `Steelminer mines steel-metallurgy papers for chemical composition,
heat-treatment parameters, mechanical properties and microstructure.

It turns mixed English/Chinese prose and table grids into canonical
measurements with provenance: every value is converted to its field's
base unit and keeps the sentence, trigger and page it came from.

Extraction is deterministic and rule based. Nothing leaves the machine.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = c

		if verbose {
			cfg.Output.Verbose = true
			cfg.Log.Level = "debug"
		}
		return InitLogger(cfg.Log)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number and build information for Steelminer.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "steelminer %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.steelminer/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(home + "/.steelminer")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match STEELMINER_*, e.g.
	// STEELMINER_CACHE_DIR for cache.dir
	viper.SetEnvPrefix("STEELMINER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// loadConfig layers the config file and environment over the defaults
func loadConfig() (*model.Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	} else if verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}

	c := model.DefaultConfig()
	bindEnv()
	if err := viper.Unmarshal(c); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return c, nil
}

// bindEnv registers every config key so AutomaticEnv sees keys that are
// absent from the config file
func bindEnv() {
	for _, key := range []string{
		"extraction.segmenter", "extraction.composition_window", "extraction.fallback", "extraction.tables",
		"source.pdf_timeout", "source.max_bytes",
		"cache.enabled", "cache.dir", "cache.memory_ttl", "cache.disk_ttl",
		"concurrency.workers",
		"output.dir", "output.json", "output.xlsx",
		"store.path",
		"quality.max_carbon_equivalent",
		"log.level", "log.format",
	} {
		_ = viper.BindEnv(key)
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(c model.LogConfig) error {
	var zapCfg zap.Config
	if c.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
