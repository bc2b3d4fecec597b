// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Local playback
	OpPlayFile  Op = "play file"
	OpLoadFile  Op = "load file"
	OpDelayPlay Op = "schedule playback"

	// Remote playback
	OpPlayURL    Op = "play url"
	OpLoadURL    Op = "load url"
	OpPlayStream Op = "play stream"
	OpLoadStream Op = "load stream"
	OpDecrypt    Op = "decrypt stream"
	OpDecode     Op = "decode audio"

	// Transport
	OpPause  Op = "pause"
	OpResume Op = "resume"
	OpSeek   Op = "seek"
	OpLoop   Op = "restart track"

	// Persistence
	OpSettingsLoad Op = "load settings"
	OpSettingsSave Op = "save settings"
	OpHistorySave  Op = "record play history"
	OpHistoryLoad  Op = "load play history"

	// Initialization
	OpInitialize Op = "initialize player"
	OpRemote     Op = "start remote control"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
