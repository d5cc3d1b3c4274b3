package domain

import "time"

// Strategy is a named trading approach that trades can reference.
// Names are unique; a strategy referenced by any trade cannot be deleted.
type Strategy struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
