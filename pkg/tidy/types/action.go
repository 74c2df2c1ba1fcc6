package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidMode indicates an unknown action mode string.
var ErrInvalidMode = errors.New("invalid mode")

// ErrInvalidStatus indicates an unknown action status string.
var ErrInvalidStatus = errors.New("invalid status")

// Mode is the kind of filesystem mutation applied to one plan entry.
type Mode int

const (
	// ModeUnset is the zero value; an executor treats it as "use the plan's mode".
	ModeUnset Mode = iota
	// ModeMove relocates the source to the destination.
	ModeMove
	// ModeCopy duplicates the source content at the destination.
	ModeCopy
	// ModeHardlink links the destination to the source inode.
	ModeHardlink
	// ModeIndex writes a reference record at the destination.
	ModeIndex
)

// Modes lists every valid mode in a stable order.
var Modes = []Mode{ModeMove, ModeCopy, ModeHardlink, ModeIndex}

// String returns the log representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeMove:
		return "move"
	case ModeCopy:
		return "copy"
	case ModeHardlink:
		return "hardlink"
	case ModeIndex:
		return "index"
	default:
		return ""
	}
}

// Valid reports whether m is one of the four concrete modes.
func (m Mode) Valid() bool {
	return m >= ModeMove && m <= ModeIndex
}

// ParseMode converts a string like "copy" into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "move":
		return ModeMove, nil
	case "copy":
		return ModeCopy, nil
	case "hardlink", "link":
		return ModeHardlink, nil
	case "index":
		return ModeIndex, nil
	default:
		return ModeUnset, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// MarshalText implements encoding.TextMarshaler. ModeUnset encodes as an
// empty string so failed entries with no usable mode can still be logged.
func (m Mode) MarshalText() ([]byte, error) {
	if m == ModeUnset {
		return []byte{}, nil
	}
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*m = ModeUnset
		return nil
	}
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Status is the outcome of one executed plan entry.
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// UnmarshalText implements encoding.TextUnmarshaler and rejects unknown values.
func (s *Status) UnmarshalText(text []byte) error {
	switch v := Status(text); v {
	case StatusOK, StatusSkipped, StatusFailed:
		*s = v
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, string(text))
	}
}

// Reason explains which policy rule produced a planned destination.
type Reason string

const (
	ReasonType      Reason = "type"
	ReasonDate      Reason = "date"
	ReasonSize      Reason = "size"
	ReasonDuplicate Reason = "duplicate"
)

// PlannedAction is one proposed mutation. Destination is unique within its
// plan but has not been checked against the live filesystem.
type PlannedAction struct {
	Source      string `json:"src"`
	Destination string `json:"dst"`
	Mode        Mode   `json:"mode"`
	Size        int64  `json:"size,omitempty"`
	Reason      Reason `json:"reason,omitempty"`
}

// CompletedAction is the durable record of one executed plan entry.
// An ok entry carries everything needed to invert it.
type CompletedAction struct {
	Source      string    `json:"src"`
	Destination string    `json:"dst"`
	Time        time.Time `json:"time"`
	Status      Status    `json:"status"`
	Mode        Mode      `json:"mode"`
	Error       string    `json:"error,omitempty"`
	Size        int64     `json:"size,omitempty"`
}

// Outcome is the result of reversing one CompletedAction.
type Outcome string

const (
	OutcomeOK            Outcome = "ok"
	OutcomeFailed        Outcome = "failed"
	OutcomeNotApplicable Outcome = "notApplicable"
	OutcomePreview       Outcome = "preview"
)

// UndoResult reports what happened to one log entry during reversal.
type UndoResult struct {
	Entry   CompletedAction `json:"entry"`
	Outcome Outcome         `json:"outcome"`

	// RestoredTo is the path a moved file was returned to. It differs from
	// Entry.Source when the original location was occupied.
	RestoredTo string `json:"restored_to,omitempty"`

	Error string `json:"error,omitempty"`
}
