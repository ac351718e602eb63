// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cchexcode/qop/internal/log"
	"github.com/cchexcode/qop/internal/version"
)

var (
	logLevel     string
	logFormat    string
	experimental bool
)

// rootCmd is qop's base command.
var rootCmd = &cobra.Command{
	Use:     "qop",
	Short:   "A transactional, multi-backend SQL migration engine",
	Long:    "qop reconciles an on-disk, timestamp-ordered sequence of SQL migrations with an in-database ledger of applied migrations, across PostgreSQL and SQLite.",
	Version: version.Get(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return log.Configure(logLevel, logFormat)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Unlike a long-lived server's root
// command, which typically logs and os.Exit(1)s on any error, qop's
// Execute returns the error unchanged so main can translate it into one
// of the four exit codes the CLI contract promises (internal/clierr).
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&experimental, "experimental", false, "enable experimental commands (e.g. diff)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(subsystemCmd)
}
