package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/geolayers/internal/core/domain"
)

// WorkflowZoneRecommendation is the registered workflow type name.
const WorkflowZoneRecommendation = "ZoneRecommendationWorkflow"

// ZoneRecommendationInput is the input for the zone recommendation workflow.
// An empty Categories list means every category of the layer.
type ZoneRecommendationInput struct {
	Layer      domain.Layer
	Categories []string
	BBox       string
	GridSize   int
}

// ZoneRecommendationResult collects the recommendations of one run together
// with the categories that failed.
type ZoneRecommendationResult struct {
	Recommendations []*domain.ZoneRecommendation
	Failed          []string
}

// ZoneRecommendationWorkflow runs RecommendZone for every category in
// parallel. A failing category is recorded and does not abort the others;
// the workflow only fails when every category failed.
func ZoneRecommendationWorkflow(ctx workflow.Context, input ZoneRecommendationInput) (*ZoneRecommendationResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting zone recommendation workflow", "layer", input.Layer)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: resolve categories
	categories := input.Categories
	if len(categories) == 0 {
		if err := workflow.ExecuteActivity(ctx, ActivityListCategories, input.Layer).Get(ctx, &categories); err != nil {
			return nil, err
		}
	}

	// Step 2: fan out one activity per category
	futures := make([]workflow.Future, len(categories))
	for i, cat := range categories {
		futures[i] = workflow.ExecuteActivity(ctx, ActivityRecommendZone, ZoneActivityInput{
			Layer:    input.Layer,
			Category: cat,
			BBox:     input.BBox,
			GridSize: input.GridSize,
		})
	}

	// Step 3: collect in category order
	result := &ZoneRecommendationResult{}
	var lastErr error
	for i, f := range futures {
		var rec domain.ZoneRecommendation
		if err := f.Get(ctx, &rec); err != nil {
			logger.Warn("category failed", "category", categories[i], "error", err)
			result.Failed = append(result.Failed, categories[i])
			lastErr = err
			continue
		}
		result.Recommendations = append(result.Recommendations, &rec)
	}

	if len(categories) > 0 && len(result.Recommendations) == 0 {
		return nil, lastErr
	}

	logger.Info("Zone recommendation workflow finished",
		"recommended", len(result.Recommendations), "failed", len(result.Failed))
	return result, nil
}
