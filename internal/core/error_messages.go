package core

// error_messages.go maps technical errors to user-friendly messages with
// codes for support reference.
//
// # Error Codes Reference
//
// # Authentication (AUTH001-AUTH099)
//
//	AUTH001 - Session expired: the backend rejected the credential and refresh
//	          could not renew it
//	          Action: Run "leadsync login" and retry
//	          Patterns: "http 401", "unauthorized"
//
//	AUTH002 - Forbidden: the account may not create leads
//	          Action: Ask an administrator for access
//	          Patterns: "http 403"
//
// # Network (NET001-NET099)
//
//	NET001 - Connection refused: the backend is not reachable
//	         Action: Check LEADSYNC_API_URL and that the server is running
//	         Patterns: "connection refused"
//
//	NET002 - Connection reset: the connection dropped mid-request
//	         Action: Try again
//	         Patterns: "connection reset", "eof"
//
//	NET003 - Timeout: the backend did not answer in time
//	         Action: Try again later or raise API_TIMEOUT
//	         Patterns: "timeout", "deadline exceeded"
//
//	NET004 - Name resolution: the backend host name is unknown
//	         Action: Check LEADSYNC_API_URL
//	         Patterns: "no such host"
//
// # Validation (VAL001-VAL099)
//
//	VAL001 - Missing identity: the row has neither a name nor an email
//	         Action: Map a name or email column, or fill the row in
//	         Patterns: "required field missing"
//
//	VAL002 - Rejected record: the backend refused the record's fields
//	         Action: Check the field errors for this row
//	         Patterns: "http 422", "http 400"
//
// # File (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Empty file
//	FILE003 - Unsupported file type (use .csv, .tsv, .txt or .xlsx)
//	FILE004 - File not found
//
// # Import (IMP001-IMP099)
//
//	IMP001 - No mapping: every column is skipped
//	IMP002 - Cancelled: the run was interrupted
//	IMP003 - Wrong phase: the action does not fit the import's current step
//
// # Server (SRV001-SRV099), Rate limiting (RATE001)
//
//	SRV001 - Server error: the backend failed (5xx)
//	RATE001 - Rate limited: too many requests (429)
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the debug log for the original
// error.
//
// # Pattern Matching
//
// Sentinel errors are matched with errors.Is first. Otherwise patterns are
// matched case-insensitively with strings.Contains and the first match
// wins, so specific patterns come before general ones.

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgNoMapping = UserMessage{
		Message: "No column is mapped to a lead field",
		Action:  "Map at least one column, for example name or email",
		Code:    "IMP001",
	}
	msgCancelled = UserMessage{
		Message: "The import was cancelled",
		Action:  "Rows already sent were kept; run the import again for the rest",
		Code:    "IMP002",
	}
	msgWrongPhase = UserMessage{
		Message: "That step is not available right now",
		Action:  "Finish or reset the current import first",
		Code:    "IMP003",
	}
	msgTooLarge = UserMessage{
		Message: "File exceeds the maximum size",
		Action:  "Split the file or raise IMPORT_MAX_FILE_SIZE",
		Code:    "FILE001",
	}
	msgEmpty = UserMessage{
		Message: "The file is empty",
		Action:  "Provide a file with a header line and data rows",
		Code:    "FILE002",
	}
	msgUnsupported = UserMessage{
		Message: "This file type is not supported",
		Action:  "Use a .csv, .tsv, .txt or .xlsx file",
		Code:    "FILE003",
	}
	msgNotFound = UserMessage{
		Message: "The file could not be found",
		Action:  "Check the path and try again",
		Code:    "FILE004",
	}
	msgMissingIdentity = UserMessage{
		Message: "Row has neither a name nor an email",
		Action:  "Map a name or email column, or fill the row in",
		Code:    "VAL001",
	}
)

// sentinels are matched with errors.Is before any pattern.
var sentinels = []struct {
	err error
	msg UserMessage
}{
	{ErrMissingIdentity, msgMissingIdentity},
	{ErrNoMapping, msgNoMapping},
	{ErrWrongPhase, msgWrongPhase},
	{ErrFileTooLarge, msgTooLarge},
	{ErrEmptyFile, msgEmpty},
	{ErrUnsupportedFile, msgUnsupported},
	{fs.ErrNotExist, msgNotFound},
	{context.Canceled, msgCancelled},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Authentication
	{"http 401", UserMessage{
		Message: "Your session has expired",
		Action:  `Run "leadsync login" and retry`,
		Code:    "AUTH001",
	}},
	{"unauthorized", UserMessage{
		Message: "Your session has expired",
		Action:  `Run "leadsync login" and retry`,
		Code:    "AUTH001",
	}},
	{"http 403", UserMessage{
		Message: "This account may not create leads",
		Action:  "Ask an administrator for access",
		Code:    "AUTH002",
	}},

	// Rejections
	{"http 422", UserMessage{
		Message: "The backend rejected this record",
		Action:  "Check the field errors for this row",
		Code:    "VAL002",
	}},
	{"http 400", UserMessage{
		Message: "The backend rejected this record",
		Action:  "Check the field errors for this row",
		Code:    "VAL002",
	}},
	{"http 429", UserMessage{
		Message: "Too many requests",
		Action:  "Wait a moment or set IMPORT_RATE_PER_SECOND",
		Code:    "RATE001",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Wait a moment or set IMPORT_RATE_PER_SECOND",
		Code:    "RATE001",
	}},
	{"http 5", UserMessage{
		Message: "The backend failed to process the request",
		Action:  "Try again later",
		Code:    "SRV001",
	}},

	// Network
	{"connection refused", UserMessage{
		Message: "Unable to reach the backend",
		Action:  "Check LEADSYNC_API_URL and that the server is running",
		Code:    "NET001",
	}},
	{"connection reset", UserMessage{
		Message: "The connection was interrupted",
		Action:  "Try again",
		Code:    "NET002",
	}},
	{"eof", UserMessage{
		Message: "The connection was interrupted",
		Action:  "Try again",
		Code:    "NET002",
	}},
	{"timeout", UserMessage{
		Message: "The backend did not answer in time",
		Action:  "Try again later or raise API_TIMEOUT",
		Code:    "NET003",
	}},
	{"deadline exceeded", UserMessage{
		Message: "The backend did not answer in time",
		Action:  "Try again later or raise API_TIMEOUT",
		Code:    "NET003",
	}},
	{"no such host", UserMessage{
		Message: "The backend host name is unknown",
		Action:  "Check LEADSYNC_API_URL",
		Code:    "NET004",
	}},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Run again with LOG_LEVEL=debug for details",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(fmt.Errorf("submit: %w", ErrMissingIdentity))
//	// msg.Code == "VAL001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// MapReason maps a stored error-log reason, which has lost its error type.
func MapReason(reason string) UserMessage {
	if reason == "" {
		return UserMessage{}
	}
	if reason == ErrMissingIdentity.Error() {
		return msgMissingIdentity
	}
	return MapError(errors.New(reason))
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError is a failure ready to show to a person. Error returns the coded
// message; the cause stays reachable through errors.Is and errors.As.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return fmt.Sprintf("%s (Code: %s). %s", e.User.Message, e.User.Code, e.User.Action)
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError wraps err with its mapped message. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
