package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/m1k1o/go-portal/internal/config"
	"github.com/m1k1o/go-portal/internal/logging"
)

const (
	// searched for config.yaml before working directory, linux only
	defCfgPath = "/etc/portal/"
	// PORTAL_DB_PATH overrides db.path
	envPrefix = "PORTAL"
)

var rootCmd = &cobra.Command{
	Use:     "portal",
	Short:   "Portal server CLI.",
	Long:    `Portal HTTP service for live stream players and their cover images.`,
	Version: "1.0.0",
}

var (
	cfgFile   string
	logConfig config.Log
	logOutput *logging.Output

	// shared by all commands working with the database
	dbConfig config.Database
)

func init() {
	cobra.OnInitialize(preflight)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file path")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	for _, cfg := range []config.Config{&logConfig, &dbConfig} {
		if err := cfg.Init(rootCmd); err != nil {
			panic(err)
		}
	}
}

func Execute() error {
	err := rootCmd.Execute()
	if logOutput != nil {
		_ = logOutput.Close()
	}
	return err
}

func preflight() {
	readConfiguration()

	logConfig.Set()
	logOutput = logging.Setup(logConfig)
	dbConfig.Set()

	file := viper.ConfigFileUsed()
	if file == "" {
		log.Warn().Msg("preflight complete without config file")
	} else {
		// only log level is applied without restart
		viper.OnConfigChange(func(e fsnotify.Event) {
			logConfig.Set()
			logging.SetLevel(logConfig.Level)
			log.Info().Str("op", e.Op.String()).Msg("config file reloaded")
		})
		viper.WatchConfig()

		log.Info().Str("config", file).Msg("preflight complete with config file")
	}
}

func readConfiguration() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		if runtime.GOOS == "linux" {
			viper.AddConfigPath(defCfgPath)
		}
		viper.AddConfigPath(".")
	}

	// log.file is read from PORTAL_LOG_FILE
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// missing default config is fine, explicit one is not
	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
}
