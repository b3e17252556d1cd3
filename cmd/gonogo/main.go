// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main is the gonogo command line: it validates startup ideas with
// the same stages as the web UI and reads collected feedback.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/your-org/gonogo/internal/app"
	"github.com/your-org/gonogo/internal/config"
	"github.com/your-org/gonogo/internal/logging"
)

// version is set at build time via ldflags.
var version = app.Version

// cliEnv carries the process dependencies of every command
type cliEnv struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	loadConfig func(opts config.LoadOptions) (*config.Config, error)
	newApp     func(cfg *config.Config, logger *zap.Logger, opts app.Options) (*app.App, error)
}

func defaultEnv() *cliEnv {
	return &cliEnv{
		in:         os.Stdin,
		out:        os.Stdout,
		errOut:     os.Stderr,
		loadConfig: config.LoadWithOptions,
		newApp:     app.New,
	}
}

// newRootCmd builds the command tree
func newRootCmd(env *cliEnv) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gonogo",
		Short: "Validate startup ideas with a generative model",
		Long: `gonogo analyzes a free-text startup idea for feasibility, demand and
challenges, scores it from 0 to 100, and can enhance the analysis with
market trend and news lookups.

The idea is read from the arguments, from --file, or from stdin.`,
		SilenceUsage: true,
	}
	rootCmd.SetIn(env.in)
	rootCmd.SetOut(env.out)
	rootCmd.SetErr(env.errOut)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./configs/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().Bool("json", false, "print results as JSON")

	rootCmd.AddCommand(
		newAnalyzeCmd(env),
		newEnhanceCmd(env),
		newScoreCmd(env),
		newKeywordsCmd(env),
		newFeedbackCmd(env),
		newVersionCmd(),
	)
	return rootCmd
}

// setup loads configuration and builds the services for a command. The
// logger writes to stderr so stdout carries only results.
func (env *cliEnv) setup(cmd *cobra.Command, opts app.Options, requireAPIKey bool) (*app.App, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := env.loadConfig(config.LoadOptions{
		ConfigPath:       configPath,
		ValidateRequired: requireAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg := cfg.Logging
	if logCfg.Output == "" || logCfg.Output == "stdout" {
		logCfg.Output = "stderr"
	}
	logger, _, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	opts.ServiceName = "cli"
	return env.newApp(cfg, logger, opts)
}

// readIdea joins the arguments, or reads --file, or stdin when neither is
// given or the only argument is "-"
func (env *cliEnv) readIdea(cmd *cobra.Command, args []string) (string, error) {
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read idea file: %w", err)
		}
		return string(data), nil
	}
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read idea from stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func main() {
	if err := newRootCmd(defaultEnv()).Execute(); err != nil {
		os.Exit(1)
	}
}
