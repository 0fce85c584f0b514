// README: Delivery worker aggregate and level definitions.
package worker

import (
	"time"

	"wasil/internal/types"
)

// Worker is a delivery worker. The ID is the worker's phone number, which
// the mobile app uses as a natural key.
type Worker struct {
	ID               types.ID
	Name             string
	LastDeliveredAt  *time.Time
	UnfreezeProgress int
	CreatedAt        time.Time
}

// Tier is one rung of the worker level ladder.
type Tier struct {
	Name         string
	MinDelivered int
}

// DefaultTiers is the production ladder. Thresholds are configuration, the
// ordering (ascending MinDelivered) is a requirement.
var DefaultTiers = []Tier{
	{Name: "bronze", MinDelivered: 25},
	{Name: "silver", MinDelivered: 55},
	{Name: "gold", MinDelivered: 100},
	{Name: "diamond", MinDelivered: 200},
}

// Level is the derived standing of a worker at a point in time.
type Level struct {
	Name               string `json:"name"` // empty when below the lowest tier
	NextLevelThreshold *int   `json:"next_level_threshold,omitempty"`
	IsFrozen           bool   `json:"is_frozen"`
	UnfreezeProgress   int    `json:"unfreeze_progress"`
}
