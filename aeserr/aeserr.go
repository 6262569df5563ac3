// Package aeserr defines the error taxonomy surfaced at the engine's
// control-plane boundaries: network, SDP, mapping, stream, clock, audio,
// and generic categories. Packet-level faults are never wrapped in an
// Error — those are counted in Statistics and silently dropped, per the
// propagation rule that only admission-time failures reach a caller.
package aeserr

import "fmt"

// Code classifies the kind of failure independent of its underlying cause.
type Code int

const (
	// Generic covers invalid parameters, I/O, and not-implemented paths
	// that don't fit a more specific category.
	Generic Code = iota

	// Network: socket create/bind/join/send/recv failures.
	NetworkSocket
	NetworkSend
	NetworkRecv

	// SDP: parse and validation failures.
	SDPParse
	SDPValidation

	// Mapping: channel overlap, out-of-range, no channels available,
	// unknown stream.
	MappingOverlap
	MappingOutOfRange
	MappingNoChannelsAvailable
	MappingUnknownStream

	// Stream: not found, duplicate, sample-rate mismatch, invalid config.
	StreamNotFound
	StreamDuplicate
	StreamSampleRateMismatch
	StreamInvalidConfig

	// Clock: domain invalid, not locked (informational).
	ClockDomainInvalid
	ClockNotLocked

	// Audio: device not found, format not supported.
	AudioDeviceNotFound
	AudioFormatNotSupported

	// NotImplemented marks a deliberately unimplemented code path (AM824).
	NotImplemented
)

var names = map[Code]string{
	Generic:                    "generic",
	NetworkSocket:              "network_socket",
	NetworkSend:                "network_send",
	NetworkRecv:                "network_recv",
	SDPParse:                   "sdp_parse",
	SDPValidation:              "sdp_validation",
	MappingOverlap:             "mapping_overlap",
	MappingOutOfRange:          "mapping_out_of_range",
	MappingNoChannelsAvailable: "mapping_no_channels_available",
	MappingUnknownStream:       "mapping_unknown_stream",
	StreamNotFound:             "stream_not_found",
	StreamDuplicate:            "stream_duplicate",
	StreamSampleRateMismatch:   "stream_sample_rate_mismatch",
	StreamInvalidConfig:        "stream_invalid_config",
	ClockDomainInvalid:         "clock_domain_invalid",
	ClockNotLocked:             "clock_not_locked",
	AudioDeviceNotFound:        "audio_device_not_found",
	AudioFormatNotSupported:    "audio_format_not_supported",
	NotImplemented:             "not_implemented",
}

func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return "unknown"
}

// Error is a classified, wrappable error. Callers use errors.Is/As against
// a Code or a sentinel constructed with New to recover the taxonomy.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Code, so
// errors.Is(err, aeserr.New(aeserr.StreamNotFound, "")) works as a
// category check regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New constructs an *Error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap constructs an *Error classifying cause under code.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}
