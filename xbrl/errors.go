package xbrl

import (
	"errors"
	"fmt"
	"strings"
)

// maxSnippet bounds the payload excerpt attached to a DecodeError.
const maxSnippet = 500

// ErrDecode matches every *DecodeError.
var ErrDecode = errors.New("xbrl decode failed")

// DecodeError reports a malformed or absent statement payload.
type DecodeError struct {
	Reason string
	// MDRM and Context identify the fact being decoded, when known.
	MDRM    string
	Context string
	// Snippet holds at most the first 500 characters of the payload.
	Snippet string
	Err     error
}

func (e *DecodeError) Error() string {
	var sb strings.Builder
	sb.WriteString("failed to decode XBRL: ")
	sb.WriteString(e.Reason)
	if e.MDRM != "" || e.Context != "" {
		fmt.Fprintf(&sb, " (mdrm=%q, context=%q)", e.MDRM, e.Context)
	}
	if e.Err != nil {
		sb.WriteString("; ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

func snippet(data []byte) string {
	if len(data) > maxSnippet {
		data = data[:maxSnippet]
	}
	// Invalid sequences are dropped, so the rune count never exceeds the byte
	// count.
	return strings.ToValidUTF8(string(data), "")
}
