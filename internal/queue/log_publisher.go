package queue

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"blockwatch/internal/domain"
)

// LogPublisher writes events to the log instead of a broker. It backs dry runs
// and local development.
type LogPublisher struct {
	logger *log.Logger
}

func NewLogPublisher(logger *log.Logger) *LogPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, msg domain.EventMessage, deduplicate bool) error {
	payload, err := domain.EncodeEventMessage(msg)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	p.logger.Info("Event", "deduplicate", deduplicate, "payload", string(payload))
	return nil
}
