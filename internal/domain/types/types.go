// Package types contains common types shared between the API and
// repository layers.
package types

import (
	"time"

	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
)

// SearchFilter narrows a signal search. Zero values mean "no constraint".
type SearchFilter struct {
	MinScore  int
	Kind      model.SignalKind
	CompanyID string

	// Since keeps episodes with activity at or after this instant. The
	// comparison is against the episode end, so an episode that opened
	// earlier but was still active at Since matches; one that had fully
	// ended before Since does not. Results stay ordered by episode start.
	Since time.Time

	Limit int
}
