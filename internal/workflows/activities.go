package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/geolayers/internal/core/domain"
	"github.com/samirrijal/geolayers/internal/core/usecases"
)

// Activity names as registered on the worker.
const (
	ActivityListCategories = "ListCategories"
	ActivityRecommendZone  = "RecommendZone"
)

// ZoneActivityInput identifies one densest-cell computation.
type ZoneActivityInput struct {
	Layer    domain.Layer
	Category string
	BBox     string
	GridSize int
}

// ZoneActivities holds the activity implementations for the zone
// recommendation workflow.
type ZoneActivities struct {
	Layers *usecases.LayerService
	Zones  *usecases.ZoneService
}

// ListCategories returns the categories of a layer. Junctions have none and
// yield a single empty category.
func (a *ZoneActivities) ListCategories(ctx context.Context, layer domain.Layer) ([]string, error) {
	if !layer.HasCategories() {
		return []string{""}, nil
	}
	cats, err := a.Layers.Categories(ctx, layer)
	if err != nil {
		return nil, classify(fmt.Errorf("list %s categories: %w", layer, err))
	}
	return cats, nil
}

// RecommendZone computes (and publishes) the densest cell of one category.
func (a *ZoneActivities) RecommendZone(ctx context.Context, in ZoneActivityInput) (*domain.ZoneRecommendation, error) {
	logger := activity.GetLogger(ctx)

	rec, err := a.Zones.Recommend(ctx, domain.LayerQuery{
		Layer:    in.Layer,
		Category: in.Category,
		BBox:     in.BBox,
	}, in.GridSize)
	if err != nil {
		return nil, classify(fmt.Errorf("recommend %s/%s: %w", in.Layer, in.Category, err))
	}

	logger.Info("zone recommended", "layer", in.Layer, "category", in.Category, "count", rec.Count)
	return rec, nil
}

// classify marks input errors as non-retryable so Temporal does not spend
// attempts on requests that can never succeed.
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnknownLayer),
		errors.Is(err, domain.ErrInvalidBBox),
		errors.Is(err, domain.ErrInvalidArgument):
		return temporal.NewNonRetryableApplicationError(err.Error(), "InvalidInput", err)
	default:
		return err
	}
}
