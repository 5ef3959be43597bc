package emailprovider

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/isg-automation/scheduler/internal/domain"
	"github.com/isg-automation/scheduler/pkg/logger"
)

// Noop is the dry-run provider spec.md §4.5 describes: "if no API key is
// configured, the sender runs in dry-run mode: logs intent and marks
// Sent with a synthetic message id". Selected by the wiring layer when no
// real provider has credentials configured.
type Noop struct {
	logger logger.Logger
}

// NewNoop builds a dry-run EmailProvider.
func NewNoop(log logger.Logger) *Noop {
	return &Noop{logger: log}
}

// Send logs the intended send and returns a synthetic message id instead
// of making any network call.
func (n *Noop) Send(ctx context.Context, email domain.OutboundEmail) (domain.SendResult, error) {
	syntheticID := fmt.Sprintf("dry-run-%s-%d", uuid.NewString(), time.Now().UTC().UnixMilli())
	n.logger.WithField("to", email.ToEmail).
		WithField("subject", email.Subject).
		WithField("synthetic_message_id", syntheticID).
		Info("dry-run: would have sent email")
	return domain.SendResult{ProviderMessageID: syntheticID}, nil
}
