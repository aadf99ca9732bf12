package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type Log struct {
	Level   string
	Console bool

	// rotated log file, disabled when empty
	File       string
	MaxAge     int // days
	MaxSize    int // megabytes
	MaxBackups int
}

func (Log) Init(cmd *cobra.Command) error {
	cmd.PersistentFlags().String("log.level", "", "minimal level of logged messages (trace, debug, info, warn, error)")
	if err := viper.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log.level")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("log.console", true, "write human readable logs to stderr")
	if err := viper.BindPFlag("log.console", cmd.PersistentFlags().Lookup("log.console")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("log.file", "", "write json logs to this file, rotated on SIGHUP")
	if err := viper.BindPFlag("log.file", cmd.PersistentFlags().Lookup("log.file")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("log.maxage", 0, "days to keep rotated log files, 0 keeps them forever")
	if err := viper.BindPFlag("log.maxage", cmd.PersistentFlags().Lookup("log.maxage")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("log.maxsize", 100, "size in MB after which the log file is rotated")
	if err := viper.BindPFlag("log.maxsize", cmd.PersistentFlags().Lookup("log.maxsize")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("log.maxbackups", 0, "rotated log files to keep, 0 keeps all of them")
	if err := viper.BindPFlag("log.maxbackups", cmd.PersistentFlags().Lookup("log.maxbackups")); err != nil {
		return err
	}

	return nil
}

func (l *Log) Set() {
	l.Level = viper.GetString("log.level")
	l.Console = viper.GetBool("log.console")
	l.File = viper.GetString("log.file")
	l.MaxAge = viper.GetInt("log.maxage")
	l.MaxSize = viper.GetInt("log.maxsize")
	l.MaxBackups = viper.GetInt("log.maxbackups")
}
