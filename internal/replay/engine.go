package replay

import (
	"context"

	"breakout-lab/internal/machine"
)

// ReplayEngine consumes a session's events in order.
type ReplayEngine interface {
	// OnEvent is called for each event. NEW_BAR events arrive with
	// strictly ascending bar timestamps, bracketed by SESSION_START and
	// SESSION_END (or ERROR).
	OnEvent(ctx context.Context, event machine.Event) error
}
