package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// TaskQueue is the default queue the geoworker polls.
const TaskQueue = "geocode-queue"

// GeocodeShopInput is the input for GeocodeShopWorkflow.
type GeocodeShopInput struct {
	ShopID string
}

// WorkflowID is the per-shop workflow ID, so repeated scheduling for the
// same shop joins the running workflow.
func WorkflowID(shopID string) string {
	return "geocode-shop-" + shopID
}

// GeocodeShopWorkflow retries geocoding of a shop that was saved without
// coordinates, backing off so the provider rate limits can recover.
func GeocodeShopWorkflow(ctx workflow.Context, input GeocodeShopInput) (GeocodeResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting geocode workflow", "shopID", input.ShopID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 45 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        30 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        30 * time.Minute,
			MaximumAttempts:        10,
			NonRetryableErrorTypes: []string{ErrTypeShopNotFound, ErrTypeInvalidShop},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var a *GeocodeActivities
	var res GeocodeResult
	if err := workflow.ExecuteActivity(ctx, a.GeocodeShop, input.ShopID).Get(ctx, &res); err != nil {
		logger.Warn("geocode workflow gave up, shop stays without coordinates", "shopID", input.ShopID, "error", err)
		return GeocodeResult{}, err
	}

	logger.Info("Shop geocoded", "shopID", res.ShopID, "lat", res.Lat, "lon", res.Lon)
	return res, nil
}
