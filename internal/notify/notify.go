// README: Best-effort outbound notifications; failures never affect orders.
package notify

import (
	"context"

	"wasil/internal/types"
)

// Role is the recipient kind a chat registration belongs to.
type Role string

const (
	RoleOwner      Role = "owner"
	RoleWorker     Role = "worker"
	RoleRestaurant Role = "restaurant"
)

// Sender pushes a message to the chat registered for (role, refID).
// Implementations are fire-and-forget collaborators: callers ignore the
// returned error for correctness and only log it.
type Sender interface {
	Send(ctx context.Context, role Role, refID types.ID, text string) error
}

// Nop is used when no bot token is configured.
type Nop struct{}

func (Nop) Send(context.Context, Role, types.ID, string) error { return nil }
