package common

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors; callers match them with errors.Is.
var (
	ErrTimeout           = errors.New("timeout")
	ErrProbeFailed       = errors.New("engine-id probe failed")
	ErrKey               = errors.New("key loading failed")
	ErrOIDParse          = errors.New("failed to parse oid")
	ErrOIDsNotIncreasing = errors.New("oids not increasing")
	ErrCommunityNotUTF8  = errors.New("community is not valid utf-8")
)

// TransportError reports a failure to open the transport named App on Addr.
type TransportError struct {
	App   string
	Addr  string
	Cause error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("error in transport %s on %s", e.App, e.Addr)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Cause }

// PacketError carries a non-zero error-status returned by an agent.
type PacketError struct {
	Status int
	Index  int
}

func (e *PacketError) Error() string {
	return fmt.Sprintf("error in packet: %s (index %d)", ErrorStatusText(e.Status), e.Index)
}

// UsmError reports a user-based security model failure, such as an unknown user or a bad digest.
type UsmError struct {
	Reason string
}

func (e *UsmError) Error() string {
	return "usm error: " + e.Reason
}

// NoSuchObjectError is returned when an agent reports that the identifier does not exist.
type NoSuchObjectError struct {
	OID OID
}

func (e *NoSuchObjectError) Error() string {
	return fmt.Sprintf("no such object: %s", e.OID)
}

// InvalidCallbackOpError is reported when the engine invokes a completion hook with an unknown operation code.
type InvalidCallbackOpError struct {
	Op int
}

func (e *InvalidCallbackOpError) Error() string {
	return fmt.Sprintf("invalid callback operation %d", e.Op)
}

// InvalidKindError is returned for an unknown message kind code.
type InvalidKindError struct {
	Code byte
}

func (e *InvalidKindError) Error() string {
	return fmt.Sprintf("invalid message kind 0x%02x", e.Code)
}

// InvalidVersionError is returned for an unknown protocol version code.
type InvalidVersionError struct {
	Code int
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid version %d", e.Code)
}

// UnsupportedVersionError is returned for a known but unsupported protocol version.
type UnsupportedVersionError struct {
	Code int
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported version %d", e.Code)
}

var errorStatusText = []string{
	"noError",
	"tooBig",
	"noSuchName",
	"badValue",
	"readOnly",
	"genErr",
	"noAccess",
	"wrongType",
	"wrongLength",
	"wrongEncoding",
	"wrongValue",
	"noCreation",
	"inconsistentValue",
	"resourceUnavailable",
	"commitFailed",
	"undoFailed",
	"authorizationError",
	"notWritable",
	"inconsistentName",
}

// Protocol error-status codes referenced by the client.
const (
	NoError    = 0
	TooBig     = 1
	NoSuchName = 2
	GenErr     = 5
)

// ErrorStatusText returns the protocol name of an error-status code.
func ErrorStatusText(status int) string {
	if status >= 0 && status < len(errorStatusText) {
		return errorStatusText[status]
	}
	return fmt.Sprintf("unknown error %d", status)
}
