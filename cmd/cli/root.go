// Package cli provides the command-line interface of netsweep: the API
// server, one-shot sweeps and probes, and segment management against the
// configured store.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/netsweep/internal/config"
	"github.com/anstrom/netsweep/internal/logging"
)

const (
	defaultConfigFile = "config.yaml"
	envPrefix         = "NETSWEEP"
)

var (
	cfgFile      string
	verbose      bool
	outputFormat string
)

// Build information, set from main.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "netsweep",
	Short: "IPv4 host discovery",
	Long: `netsweep sweeps IPv4 network segments for live hosts, probes single
hosts with nmap for open ports, services and operating system, and keeps
the results per segment.`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. It is called once by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", formatTable, "output format: table or json")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

// initConfig points viper at the config file and the NETSWEEP_ environment.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// getConfigFilePath returns the config file in use.
func getConfigFilePath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return defaultConfigFile
}

// overrideKeys are the settings that NETSWEEP_* variables and bound flags
// may override on top of the config file.
var overrideKeys = []string{
	"storage.backend",
	"storage.data_dir",
	"api.listen_addr",
	"api.port",
	"engine.liveness_method",
	"engine.nmap_binary",
	"engine.default_ports",
	"logging.level",
	"logging.format",
}

// loadConfig reads the config file, applies overrides and sets up logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigFilePath())
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	for _, key := range overrideKeys {
		if viper.IsSet(key) {
			applyOverride(cfg, key)
		}
	}
	if verbose {
		cfg.Logging.Level = logging.LevelDebug
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	initLogging(cfg)
	return cfg, nil
}

func applyOverride(cfg *config.Config, key string) {
	switch key {
	case "storage.backend":
		cfg.Storage.Backend = viper.GetString(key)
	case "storage.data_dir":
		cfg.Storage.DataDir = viper.GetString(key)
	case "api.listen_addr":
		cfg.API.ListenAddr = viper.GetString(key)
	case "api.port":
		cfg.API.Port = viper.GetInt(key)
	case "engine.liveness_method":
		cfg.Engine.LivenessMethod = viper.GetString(key)
	case "engine.nmap_binary":
		cfg.Engine.NmapBinary = viper.GetString(key)
	case "engine.default_ports":
		cfg.Engine.DefaultPorts = viper.GetString(key)
	case "logging.level":
		cfg.Logging.Level = logging.LogLevel(viper.GetString(key))
	case "logging.format":
		cfg.Logging.Format = logging.LogFormat(viper.GetString(key))
	}
}

// initLogging installs the configured logger as the process default.
func initLogging(cfg *config.Config) {
	logCfg := cfg.Logging
	logCfg.AddSource = logCfg.AddSource || logCfg.Level == logging.LevelDebug

	logger, err := logging.New(logCfg)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)
}

func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the build information reported by the CLI and the API.
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if outputFormat == formatJSON {
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"version":    version,
				"commit":     commit,
				"build_time": buildTime,
			})
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "netsweep %s\n", getVersion())
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
