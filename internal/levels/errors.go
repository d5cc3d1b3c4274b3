package levels

import (
	"errors"
	"fmt"

	"tradeSentinel/internal/domain"
)

var (
	// ErrLevelNotPending is returned when a hit is attempted on a level
	// that was already hit or cancelled.
	ErrLevelNotPending = errors.New("exit level is not pending")
	// ErrNoUnitsRemaining is returned when a hit is attempted on a trade
	// whose units are already fully closed.
	ErrNoUnitsRemaining = errors.New("trade has no remaining units to close")
	// ErrNoHitLevels is returned when settlement is derived for a trade
	// with no hit levels.
	ErrNoHitLevels = errors.New("trade has no hit levels to settle")
)

// LevelWeightError reports that the unit weights of one level type do not
// sum to the full position within tolerance.
type LevelWeightError struct {
	LevelType domain.LevelType
	Sum       domain.Quantity
}

func (e *LevelWeightError) Error() string {
	return fmt.Sprintf("%s level weights sum to %s, want 1.0 within %s",
		e.LevelType, e.Sum.String(), weightTolerance.String())
}

// LevelValueError reports an invalid field on a single exit level.
type LevelValueError struct {
	LevelType  domain.LevelType
	OrderIndex int
	Field      string
	Reason     string
}

func (e *LevelValueError) Error() string {
	return fmt.Sprintf("%s level %d: %s %s", e.LevelType, e.OrderIndex, e.Field, e.Reason)
}

// InvalidRevertError reports why a hit level could not be reverted to
// pending.
type InvalidRevertError struct {
	LevelID int64
	Reason  string
}

func (e *InvalidRevertError) Error() string {
	return fmt.Sprintf("cannot revert level %d: %s", e.LevelID, e.Reason)
}
