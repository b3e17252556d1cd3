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

package orchestrator

import (
	"context"
	"time"

	"github.com/your-org/gonogo/internal/ideas"
	"github.com/your-org/gonogo/internal/metrics"
	"github.com/your-org/gonogo/internal/streaming"
	"github.com/your-org/gonogo/internal/tools"
)

// instrumentedStages implements pipeline.Stages around the real stages,
// recording metrics and reporting progress to the stream found in ctx.
type instrumentedStages struct {
	analyzer Analyzer
	enhancer Enhancer
	metrics  *metrics.Metrics
}

func (s *instrumentedStages) Analyze(ctx context.Context, idea string) (ideas.AnalysisResult, error) {
	stream := streaming.FromContext(ctx)

	stream.EmitProgress(streaming.StageValidate, "Validating idea", 5, nil)
	if _, err := ideas.ValidateIdea(idea); err != nil {
		return ideas.AnalysisResult{}, err
	}

	stream.EmitProgress(streaming.StageAnalyze, "Analyzing idea", 20, nil)
	start := time.Now()
	result, err := s.analyzer.Analyze(ctx, idea)
	s.metrics.ObserveStage(string(streaming.StageAnalyze), time.Since(start), err)
	if err == nil {
		stream.EmitProgress(streaming.StageAnalyze, "Analysis ready", 90, map[string]interface{}{
			"validation_score": result.ValidationScore,
		})
	}
	return result, err
}

func (s *instrumentedStages) Enhance(ctx context.Context, fields ideas.AnalysisFields, idea string) (ideas.EnhancedResult, error) {
	stream := streaming.FromContext(ctx)

	stream.EmitProgress(streaming.StageKeywords, "Extracting keywords", 10, map[string]interface{}{
		"keywords": ideas.ExtractKeywords(idea),
	})
	stream.EmitProgress(streaming.StageEnhance, "Enhancing analysis with live data", 30, nil)

	if stream != nil {
		ctx = tools.WithObserver(ctx, func(name string, duration time.Duration, err error) {
			data := map[string]interface{}{
				"tool":        name,
				"duration_ms": duration.Milliseconds(),
			}
			if err != nil {
				data["failed"] = true
			}
			stream.EmitProgress(streaming.StageTool, "Looked up "+name, 60, data)
		})
	}

	start := time.Now()
	result, err := s.enhancer.Enhance(ctx, fields, idea)
	s.metrics.ObserveStage(string(streaming.StageEnhance), time.Since(start), err)
	if err == nil {
		stream.EmitProgress(streaming.StageEnhance, "Enhancement ready", 90, map[string]interface{}{
			"sources": len(result.LiveDataSources),
		})
	}
	return result, err
}
