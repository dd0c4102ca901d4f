package delivery

import (
	"context"
	"log/slog"
)

// Gateway is the transport that actually reaches a phone (an SMS provider).
type Gateway interface {
	Deliver(ctx context.Context, phone, code string) error
}

// LogGateway stands in for a real SMS provider and writes the code to the
// log at debug level.
type LogGateway struct {
	Logger *slog.Logger
}

func (g LogGateway) Deliver(ctx context.Context, phone, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.Logger.DebugContext(ctx, "sending access code",
		slog.String("phone", phone),
		slog.String("code", code),
	)
	return nil
}
