// Package delivery hands finished drafts to the outside world: a
// Gateway abstraction over the actual transport and a Worker that
// drains due scheduled events.
package delivery

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/fusesell/fusesell/pkg/schema"
)

// Delivery is one outbound message handed to a Gateway.
type Delivery struct {
	EventID          string           `json:"event_id,omitempty"`
	Kind             schema.EventKind `json:"kind"`
	DraftID          string           `json:"draft_id"`
	ProcessID        string           `json:"process_id"`
	OrgID            string           `json:"org_id"`
	RecipientAddress string           `json:"recipient_address"`
	RecipientName    string           `json:"recipient_name,omitempty"`
	Subject          string           `json:"subject"`
	Body             string           `json:"body"`
	Payload          json.RawMessage  `json:"payload,omitempty"`
}

// Gateway sends a delivery through an external channel. Implementations
// live outside this core; the default just logs.
type Gateway interface {
	Send(ctx context.Context, d Delivery) error
}

// LogGateway is the default no-op Gateway: it records the send and
// succeeds. Useful for local runs and tests.
type LogGateway struct {
	logger *slog.Logger
}

// NewLogGateway creates a LogGateway.
func NewLogGateway(logger *slog.Logger) *LogGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogGateway{logger: logger}
}

func (g *LogGateway) Send(ctx context.Context, d Delivery) error {
	g.logger.InfoContext(ctx, "delivery dispatched",
		slog.String("kind", string(d.Kind)),
		slog.String("draft_id", d.DraftID),
		slog.String("recipient", d.RecipientAddress),
		slog.String("subject", d.Subject),
	)
	return nil
}

var _ Gateway = (*LogGateway)(nil)
