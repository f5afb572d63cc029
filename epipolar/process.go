package epipolar

import (
	"context"
	"fmt"
	"time"
)

// Process runs one estimation request with the given settings and returns it
// ready for tracking. The request's matches are left untouched; the retained
// inliers are returned in TrackedResult.Inliers.
func Process(ctx context.Context, req *Request, rc RansacConfig) (*TrackedResult, error) {
	store, err := req.Store()
	if err != nil {
		return nil, err
	}
	cfg, err := rc.EstimatorConfig()
	if err != nil {
		return nil, fmt.Errorf("building estimator config: %w", err)
	}
	timeout, err := rc.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := NewEstimator(cfg).Estimate(ctx, store)
	if err != nil {
		return nil, err
	}
	return &TrackedResult{
		ID:         req.ID,
		Request:    req,
		Result:     result,
		Inliers:    store.Correspondences(),
		ComputedAt: start,
		Duration:   time.Since(start),
	}, nil
}
