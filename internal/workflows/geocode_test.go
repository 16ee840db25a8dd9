package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/localshop/internal/core/domain"
)

type stubGeocoder struct {
	calls int
	errs  []error
}

func (s *stubGeocoder) GeocodeShop(_ context.Context, id string) (*domain.Shop, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	loc := domain.NewGeoPoint(77.2167, 28.6315)
	return &domain.Shop{ID: id, Location: &loc, CitySlug: "new-delhi", AreaSlug: "connaught-place"}, nil
}

func newEnv(t *testing.T, shops ShopGeocoder) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(GeocodeShopWorkflow)
	env.RegisterActivity(&GeocodeActivities{Shops: shops})
	return env
}

func TestGeocodeShopWorkflow_Success(t *testing.T) {
	stub := &stubGeocoder{}
	env := newEnv(t, stub)

	env.ExecuteWorkflow(GeocodeShopWorkflow, GeocodeShopInput{ShopID: "s1"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var res GeocodeResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, "s1", res.ShopID)
	assert.InDelta(t, 28.6315, res.Lat, 1e-9)
	assert.Equal(t, "connaught-place", res.AreaSlug)
	assert.Equal(t, 1, stub.calls)
}

func TestGeocodeShopWorkflow_RetriesRateLimit(t *testing.T) {
	limited := &domain.RateLimitedError{}
	stub := &stubGeocoder{errs: []error{limited, limited}}
	env := newEnv(t, stub)

	env.ExecuteWorkflow(GeocodeShopWorkflow, GeocodeShopInput{ShopID: "s1"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	assert.Equal(t, 3, stub.calls)
}

func TestGeocodeShopWorkflow_NotFoundIsPermanent(t *testing.T) {
	stub := &stubGeocoder{errs: []error{domain.ErrNotFound}}
	env := newEnv(t, stub)

	env.ExecuteWorkflow(GeocodeShopWorkflow, GeocodeShopInput{ShopID: "gone"})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, ErrTypeShopNotFound, appErr.Type())
	assert.Equal(t, 1, stub.calls)
}

func TestWorkflowID(t *testing.T) {
	assert.Equal(t, "geocode-shop-abc", WorkflowID("abc"))
}
