package ports

import (
	"context"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
)

// MessageHandler receives every message delivered on a subscription.
type MessageHandler func(msg domain.RawMessage)

// Transport is one logical broker connection. Implementations must tolerate
// Connect being called again after a loss.
type Transport interface {
	// Connect opens a session. The returned channel receives (or is closed)
	// once the session is lost.
	Connect(ctx context.Context) (<-chan error, error)
	Subscribe(ctx context.Context, filter string, handler MessageHandler) error
	Disconnect()
}
