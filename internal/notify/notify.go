// Package notify pushes short session summaries to chat and push services.
package notify

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
)

const sendTimeout = 10 * time.Second

type sender interface {
	Send(message string, params *stypes.Params) []error
}

// Notifier delivers messages to every configured service URL. A Notifier
// without URLs does nothing.
type Notifier struct {
	sender sender
	logger *slog.Logger
}

// New builds a notifier for shoutrrr service URLs.
func New(urls []string, logger *slog.Logger) (*Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{logger: logger}
	if len(urls) == 0 {
		return n, nil
	}

	router, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		// the error may echo a URL with tokens, keep only the service scheme
		return nil, fmt.Errorf("invalid notification URL (%s): %w", schemes(urls), err)
	}
	router.Timeout = sendTimeout
	router.SetLogger(log.New(io.Discard, "", 0))
	n.sender = router
	return n, nil
}

// Enabled reports whether any service is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.sender != nil
}

// Notify sends title and message. Failures are logged and never returned.
func (n *Notifier) Notify(title, message string) {
	if !n.Enabled() {
		return
	}

	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}
	failed := 0
	for _, err := range n.sender.Send(message, &params) {
		if err != nil {
			failed++
			n.logger.Warn("notification failed", "error", err)
		}
	}
	if failed == 0 {
		n.logger.Debug("notification sent", "title", title)
	}
}

// SessionSummary formats the one-line message sent after a flush.
func SessionSummary(classID, date string, present, absent []string) string {
	msg := fmt.Sprintf("%s %s: %d present, %d absent", classID, date, len(present), len(absent))
	if len(absent) > 0 {
		msg += " (" + strings.Join(absent, ", ") + ")"
	}
	return msg
}

func schemes(urls []string) string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		scheme, _, ok := strings.Cut(u, "://")
		if !ok {
			scheme = "?"
		}
		out = append(out, scheme)
	}
	return strings.Join(out, ", ")
}
