package decoderv1

import (
	"fmt"

	tickv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/tick/v1"
)

// Format selects which wire shape a Decoder accepts.
type Format string

const (
	// FormatAuto detects the shape from the first byte of each frame.
	FormatAuto Format = "auto"
	// FormatFlat accepts a JSON array of "T"-tagged events.
	FormatFlat Format = "flat"
	// FormatEnveloped accepts a {"stream","data"} object.
	FormatEnveloped Format = "enveloped"
)

// ParseFormat validates a configured format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatAuto, FormatFlat, FormatEnveloped:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown feed format %q", s)
}

// MissingFieldPolicy controls how a recognized event with a missing numeric field is handled.
type MissingFieldPolicy string

const (
	// MissingFieldDrop discards the event and reports an Anomaly per missing field.
	MissingFieldDrop MissingFieldPolicy = "drop"
	// MissingFieldZero substitutes 0 for every missing field.
	MissingFieldZero MissingFieldPolicy = "zero"
)

// ParseMissingFieldPolicy validates a configured policy name.
func ParseMissingFieldPolicy(s string) (MissingFieldPolicy, error) {
	switch MissingFieldPolicy(s) {
	case MissingFieldDrop, MissingFieldZero:
		return MissingFieldPolicy(s), nil
	}
	return "", fmt.Errorf("unknown missing field policy %q", s)
}

// Anomaly describes a numeric field that was absent or not a number on a recognized event.
type Anomaly struct {
	Field string
	Kind  tickv1.Kind
}

// ControlKind is the "T" tag of a feed status message.
type ControlKind string

const (
	// ControlSuccess acknowledges connection or authentication.
	ControlSuccess ControlKind = "success"
	// ControlError reports a feed-side failure.
	ControlError ControlKind = "error"
	// ControlSubscription echoes the active subscription.
	ControlSubscription ControlKind = "subscription"
)

// Control is a feed status message. It never becomes a Tick.
type Control struct {
	Kind ControlKind
	Code int
	Msg  string
}

// authErrorCodes are the feed error codes that cannot be fixed by staying connected.
var authErrorCodes = map[int]struct{}{
	401: {}, // not authenticated
	402: {}, // auth failed
	403: {}, // already authenticated
	404: {}, // auth timeout
	406: {}, // connection limit exceeded
}

// IsAuthFailure reports whether the control message rejects the session credentials.
func (c Control) IsAuthFailure() bool {
	if c.Kind != ControlError {
		return false
	}
	_, ok := authErrorCodes[c.Code]
	return ok
}

// Result is everything a single frame decoded to.
type Result struct {
	Ticks     []tickv1.Tick
	Anomalies []Anomaly
	Controls  []Control
	// Ignored counts events with an unrecognized tag, stream, or symbol.
	Ignored int
}
