package apperr

// messages.go maps errors to user-facing messages with support codes.
//
// Errors that carry a Kind are mapped by kind first. Anything else falls back
// to case-insensitive substring matching against errorPatterns, first match
// wins. Codes are grouped by category:
//
//	CONV001-CONV099  conversion pipeline (decode, encode, staging)
//	SFTP001-SFTP099  remote transfer (auth, network, missing path)
//	REQ001-REQ099    request validation and throttling
//	ERR000           fallback; check the logs for the technical error
//
// When adding a code, keep this table and the package doc in sync.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var kindMessages = map[Kind]UserMessage{
	Decode: {
		Message: "The file is not a readable SAS7BDAT dataset",
		Action:  "Check that the upload is an uncorrupted .sas7bdat file",
		Code:    "CONV001",
	},
	Encode: {
		Message: "The dataset contains a column type that cannot be converted",
		Action:  "Convert to the other target format or contact support",
		Code:    "CONV002",
	},
	Staging: {
		Message: "Temporary storage is unavailable",
		Action:  "Please try again in a few moments",
		Code:    "CONV003",
	},
	NotFound: {
		Message: "The requested file or directory does not exist",
		Action:  "Verify the path and try again",
		Code:    "SFTP003",
	},
	Auth: {
		Message: "The remote server rejected the credentials",
		Action:  "Check the username and password",
		Code:    "SFTP001",
	},
	Network: {
		Message: "The remote server could not be reached",
		Action:  "Check host, port and network access, then try again",
		Code:    "SFTP002",
	},
	Invalid: {
		Message: "The request is missing or has invalid fields",
		Action:  "Review the request and try again",
		Code:    "REQ001",
	},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is consulted for errors without a Kind.
// More specific patterns must come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "too many concurrent conversions",
		msg: UserMessage{
			Message: "System is busy processing other conversions",
			Action:  "Please wait a moment and try again",
			Code:    "REQ002",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "REQ003",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Upload a smaller dataset",
			Code:    "REQ004",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a .sas7bdat file to upload",
			Code:    "REQ005",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try again or use a smaller file",
			Code:    "REQ006",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ007",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(apperr.New(apperr.Auth, "sftp.dial", "unable to authenticate"))
//	// msg.Code == "SFTP001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if msg, ok := kindMessages[KindOf(err)]; ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something other than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
