package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
)

// Scheduler implements ports.GeocodeScheduler by starting GeocodeShopWorkflow.
type Scheduler struct {
	client    client.Client
	taskQueue string
}

// NewScheduler creates a Scheduler on taskQueue (TaskQueue when empty).
func NewScheduler(c client.Client, taskQueue string) *Scheduler {
	if taskQueue == "" {
		taskQueue = TaskQueue
	}
	return &Scheduler{client: c, taskQueue: taskQueue}
}

// ScheduleGeocode starts the workflow for shopID. Scheduling a shop whose
// workflow is already running is a no-op.
func (s *Scheduler) ScheduleGeocode(ctx context.Context, shopID string) error {
	_, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        WorkflowID(shopID),
		TaskQueue: s.taskQueue,
	}, GeocodeShopWorkflow, GeocodeShopInput{ShopID: shopID})
	if err != nil {
		return fmt.Errorf("start geocode workflow for %s: %w", shopID, err)
	}
	return nil
}
