package jobs

import (
	"context"
	"fmt"
)

const (
	ResourceLatest = "jobs://latest"
	ResourceStats  = "jobs://stats"
)

type Resource struct {
	URI  string
	Name string
}

func (s *Service) Resources() []Resource {
	return []Resource{
		{URI: ResourceLatest, Name: "Latest Job Listings"},
		{URI: ResourceStats, Name: "Job Market Statistics"},
	}
}

// ReadResource returns the text of a named resource. Unknown URIs are the
// one case reported as an error.
func (s *Service) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case ResourceLatest:
		return s.Latest(ctx, s.cfg.LatestLimit), nil
	case ResourceStats:
		return s.Stats(ctx), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrResourceNotFound, uri)
	}
}
