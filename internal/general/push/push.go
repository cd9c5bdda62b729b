// Package push provides the dispatch.PushSender adapter (spec §4.4 step 8).
// No push provider (FCM/APNs) appears anywhere in the corpus this module
// was grounded on, so this is a logging stand-in rather than a dependency
// swap: it records the send the way a real provider call would be logged
// around, leaving the provider call itself as the one seam a deployment
// needs to fill in.
package push

import (
	"context"

	"ride-hail/internal/general/logger"
)

// LogSender logs push sends instead of delivering them.
type LogSender struct {
	logger *logger.Logger
}

// NewLogSender builds a push.LogSender.
func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{logger: log}
}

// Send implements dispatch.PushSender.
func (s *LogSender) Send(token, title, body string, data map[string]string) error {
	s.logger.Info(context.Background(), "push_send", title, map[string]any{
		"token_present": token != "",
		"body":          body,
		"data":          data,
	})
	return nil
}
