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
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/your-org/gonogo/internal/app"
	"github.com/your-org/gonogo/internal/feedback"
	"github.com/your-org/gonogo/internal/render"
)

func newFeedbackCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Inspect feedback collected by the web UI",
	}
	cmd.AddCommand(newFeedbackStatsCmd(env), newFeedbackListCmd(env))
	return cmd
}

func newFeedbackStatsCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count feedback by rating",
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := env.setup(cmd, app.Options{Feedback: true}, false)
			if err != nil {
				return err
			}
			defer func() { _ = services.Close() }()

			stats, err := services.Feedback.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read feedback stats: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return json.NewEncoder(out).Encode(stats)
			}
			total := stats[feedback.RatingHelpful] + stats[feedback.RatingNotHelpful]
			fmt.Fprintf(out, "Storage:     %s\n", services.Feedback.StorageType())
			fmt.Fprintf(out, "Helpful:     %d\n", stats[feedback.RatingHelpful])
			fmt.Fprintf(out, "Not helpful: %d\n", stats[feedback.RatingNotHelpful])
			fmt.Fprintf(out, "Total:       %d\n", total)
			return nil
		},
	}
}

func newFeedbackListCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent feedback, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			services, err := env.setup(cmd, app.Options{Feedback: true}, false)
			if err != nil {
				return err
			}
			defer func() { _ = services.Close() }()

			records, err := services.Feedback.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list feedback: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return json.NewEncoder(out).Encode(records)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tRATING\tSCORE\tCOMMENT")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					r.Timestamp.Format(time.RFC3339), r.Rating, render.FormatScore(r.ValidationScore), r.Comment)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int("limit", 20, "maximum number of entries")
	return cmd
}
