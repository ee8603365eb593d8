// Package notify implements the delivery sinks the tick driver posts through.
package notify

import (
	"fmt"
	"strconv"
	"strings"
)

// Target is a Telegram chat, optionally a forum topic inside it.
type Target struct {
	ChatID   int64
	ThreadID int
}

func (t Target) IsZero() bool { return t.ChatID == 0 }

func (t Target) String() string {
	if t.ThreadID != 0 {
		return fmt.Sprintf("%d:%d", t.ChatID, t.ThreadID)
	}
	return strconv.FormatInt(t.ChatID, 10)
}

// ParseTarget parses "chatID" or "chatID:threadID". Empty input yields the
// zero Target.
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Target{}, nil
	}
	chat, thread, hasThread := strings.Cut(s, ":")
	id, err := strconv.ParseInt(strings.TrimSpace(chat), 10, 64)
	if err != nil || id == 0 {
		return Target{}, fmt.Errorf("invalid chat id %q", chat)
	}
	t := Target{ChatID: id}
	if hasThread {
		n, err := strconv.Atoi(strings.TrimSpace(thread))
		if err != nil || n <= 0 {
			return Target{}, fmt.Errorf("invalid thread id %q", thread)
		}
		t.ThreadID = n
	}
	return t, nil
}
