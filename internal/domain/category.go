package domain

import "time"

// Category is an externally-managed ticket classification. Only active
// categories may receive new tickets.
type Category struct {
	ID        string
	Name      string
	IsActive  bool
	CreatedAt time.Time
}
