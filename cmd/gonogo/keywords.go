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

	"github.com/spf13/cobra"

	"github.com/your-org/gonogo/internal/ideas"
)

func newKeywordsCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywords [idea]",
		Short: "Print the keywords used for live data lookups",
		Long: `Keywords prints the search keywords the enhancement step derives from an
idea: lowercased, punctuation removed, short words and stop words dropped,
at most 10. No model call is made.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			idea, err := env.readIdea(cmd, args)
			if err != nil {
				return err
			}
			keywords := ideas.ExtractKeywords(idea)

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(keywords)
			}
			for _, kw := range keywords {
				fmt.Fprintln(cmd.OutOrStdout(), kw)
			}
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "", "read the idea from a file")
	return cmd
}
