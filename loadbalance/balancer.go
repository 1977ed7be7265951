// Package loadbalance picks which pooled client transport carries the next call.
package loadbalance

import "github.com/pkg/errors"

var ErrNoCandidates = errors.New("no candidates available")

// Balancer selects one item per call. Pick must be goroutine-safe.
type Balancer[T any] interface {
	Pick(items []T) (T, error)
	Name() string
}
