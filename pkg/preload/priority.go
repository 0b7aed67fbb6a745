package preload

import (
	"fmt"
	"strings"
)

// Priority hints how urgently a resource is wanted. Higher values are more
// urgent. It only orders work inside the Scheduler; transports may ignore it.
type Priority int

const (
	// PriorityLow is idle-priority work: speculative, rate limited.
	PriorityLow Priority = iota - 1
	// PriorityNormal is the zero value.
	PriorityNormal
	// PriorityHigh is for resources the user is about to request.
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority parses "low", "normal" or "high" (case-insensitive).
// An empty string yields PriorityNormal.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "idle":
		return PriorityLow, nil
	case "", "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	default:
		return PriorityNormal, fmt.Errorf("invalid preload priority %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// index maps a priority to its queue slot: 0 high, 1 normal, 2 low.
func (p Priority) index() int {
	switch {
	case p >= PriorityHigh:
		return 0
	case p == PriorityNormal:
		return 1
	default:
		return 2
	}
}

// Resource is a single preload request.
type Resource struct {
	URL      string   `json:"url"`
	Priority Priority `json:"priority"`
}
