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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/your-org/gonogo/internal/app"
	"github.com/your-org/gonogo/internal/ideas"
	"github.com/your-org/gonogo/internal/orchestrator"
	"github.com/your-org/gonogo/internal/render"
	"github.com/your-org/gonogo/internal/streaming"
)

func addIdeaFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "read the idea from a file")
	cmd.Flags().BoolP("verbose", "v", false, "print stage progress to stderr")
}

// withProgress attaches a stream that prints stage events when --verbose
// is set
func withProgress(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
		return ctx
	}
	stream := streaming.NewEventStream("cli")
	stream.AddCallback(func(e streaming.Event) {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%3d%%] %s\n", e.Progress, e.Message)
	})
	return streaming.WithStream(ctx, stream)
}

// report prints an action result. In JSON mode the {error, data} envelope
// is printed as is; otherwise format renders the data. A failed action is
// returned as an error carrying its display message.
func report[T any](cmd *cobra.Command, result orchestrator.ActionResult[T], format func(io.Writer, *T)) error {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else if result.OK() {
		format(cmd.OutOrStdout(), result.Data)
	}
	if !result.OK() {
		return errors.New(*result.Error)
	}
	return nil
}

func newAnalyzeCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [idea]",
		Short: "Analyze an idea and score it",
		Long: `Analyze sends the idea to the model and prints its feasibility, market
demand, challenges, suggestions and a validation score from 0 to 100.
Ideas must be between 10 and 5000 characters.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			idea, err := env.readIdea(cmd, args)
			if err != nil {
				return err
			}
			services, err := env.setup(cmd, app.Options{}, true)
			if err != nil {
				return err
			}
			defer func() { _ = services.Close() }()

			result := services.Orchestrator.Analyze(withProgress(cmd), idea)
			return report(cmd, result, printAnalysis)
		},
	}
	addIdeaFlags(cmd)
	return cmd
}

// enhanceOutput is the JSON shape of the enhance command
type enhanceOutput struct {
	Analysis    *ideas.AnalysisResult `json:"analysis,omitempty"`
	Enhancement ideas.EnhancedResult  `json:"enhancement"`
}

func newEnhanceCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enhance [idea]",
		Short: "Analyze an idea, then enhance the analysis with live data",
		Long: `Enhance runs the analysis and then asks the model to enrich it with market
trend and news lookups for keywords taken from the idea. With --analysis the
first step is skipped and the given JSON file (feasibility, demand,
challenges) is enhanced instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			idea, err := env.readIdea(cmd, args)
			if err != nil {
				return err
			}
			services, err := env.setup(cmd, app.Options{}, true)
			if err != nil {
				return err
			}
			defer func() { _ = services.Close() }()

			ctx := withProgress(cmd)
			var output enhanceOutput
			var fields ideas.AnalysisFields
			if path, _ := cmd.Flags().GetString("analysis"); path != "" {
				if fields, err = readFields(path); err != nil {
					return err
				}
			} else {
				analysis := services.Orchestrator.Analyze(ctx, idea)
				if !analysis.OK() {
					return report(cmd, analysis, printAnalysis)
				}
				output.Analysis = analysis.Data
				fields = analysis.Data.Fields()
			}

			enhanced := services.Orchestrator.Enhance(ctx, fields, idea)
			if !enhanced.OK() {
				return report(cmd, enhanced, printEnhancement)
			}
			output.Enhancement = *enhanced.Data
			return report(cmd, orchestrator.ActionResult[enhanceOutput]{Data: &output}, printEnhanceOutput)
		},
	}
	addIdeaFlags(cmd)
	cmd.Flags().String("analysis", "", "JSON file with an earlier analysis to enhance")
	return cmd
}

func newScoreCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score [idea]",
		Short: "Generate a standalone validation score",
		RunE: func(cmd *cobra.Command, args []string) error {
			idea, err := env.readIdea(cmd, args)
			if err != nil {
				return err
			}
			services, err := env.setup(cmd, app.Options{}, true)
			if err != nil {
				return err
			}
			defer func() { _ = services.Close() }()

			return report(cmd, services.Orchestrator.Score(withProgress(cmd), idea), printScore)
		},
	}
	addIdeaFlags(cmd)
	return cmd
}

func readFields(path string) (ideas.AnalysisFields, error) {
	var fields ideas.AnalysisFields
	data, err := os.ReadFile(path)
	if err != nil {
		return fields, fmt.Errorf("failed to read analysis file: %w", err)
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return fields, fmt.Errorf("failed to parse analysis file: %w", err)
	}
	return fields, nil
}

func printScoreLine(w io.Writer, score float64) {
	fmt.Fprintf(w, "Validation score: %s/100 (%s)\n", render.FormatScore(score), render.ScoreBand(score))
}

func printSection(w io.Writer, title, body string) {
	fmt.Fprintf(w, "\n%s\n%s\n", title, strings.TrimSpace(body))
}

func printAnalysis(w io.Writer, r *ideas.AnalysisResult) {
	printScoreLine(w, r.ValidationScore)
	printSection(w, "Feasibility", r.Feasibility)
	printSection(w, "Market Demand", r.Demand)
	printSection(w, "Challenges", r.Challenges)
	printSection(w, "Suggestions", r.Suggestions)
}

func printEnhancement(w io.Writer, r *ideas.EnhancedResult) {
	printSection(w, "Enhanced Analysis", r.EnhancedAnalysis)
	if len(r.LiveDataSources) > 0 {
		fmt.Fprintln(w, "\nData Sources")
		for _, source := range r.LiveDataSources {
			fmt.Fprintf(w, "- %s\n", source)
		}
	}
}

func printEnhanceOutput(w io.Writer, r *enhanceOutput) {
	if r.Analysis != nil {
		printAnalysis(w, r.Analysis)
	}
	printEnhancement(w, &r.Enhancement)
}

func printScore(w io.Writer, r *ideas.ValidationScoreResult) {
	printScoreLine(w, r.ValidationScore)
	printSection(w, "Feasibility", r.Analysis.Feasibility)
	printSection(w, "Market Demand", r.Analysis.Demand)
	printSection(w, "Challenges", r.Analysis.Challenges)
}
