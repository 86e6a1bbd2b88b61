// Package core provides the spreadsheet health checks.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// Every failed result carries these codes in its "details" entries, so a user
// can quote the code to support staff.
//
// # Rule Violations (HDR, UNQ, EMP)
//
// Produced by the health checks themselves, never by pattern matching:
//
//	HDR001 - Incorrect or unordered headers
//	         Action: Use the template header row exactly, in the same order
//
//	UNQ001 - Unique column has duplicated values
//	         Action: Remove or correct the repeated values
//
//	UNQ002 - Unique column was not found
//	         Action: Add the column to the header row
//
//	EMP001 - Found empty cells
//	         Action: Fill every cell, including the last column
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large          Patterns: "file too large"
//	FILE002 - Empty file              Patterns: "empty file"
//	FILE003 - Sheet not found         Patterns: "sheet not found"
//	FILE004 - No header row           Patterns: "no header row"
//	FILE005 - Unreadable workbook     Patterns: "parse xlsx"
//	FILE006 - Unreadable CSV          Patterns: "parse csv"
//	FILE007 - No file provided        Patterns: "no file provided"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Invalid base64           Patterns: "illegal base64", "decode file"
//	REQ002 - Unsupported format       Patterns: "unsupported format"
//	REQ003 - Malformed request        Patterns: "invalid request"
//
// # Source Errors (SRC001-SRC099)
//
//	SRC001 - Storage unavailable      Patterns: "storage disabled"
//	SRC002 - Object not readable      Patterns: "fetch object"
//
// # Service Errors
//
//	BUSY001 - Too many validations    Patterns: "too many validations"
//	UPL004  - Request cancelled       Patterns: "context canceled"
//	UPL005  - Request timed out       Patterns: "context deadline exceeded"
//	RATE001 - Rate limited            Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Support staff should check the
// application logs (search by X-Validation-Id) for the original error.
//
// # Pattern Matching
//
// Patterns are matched case-insensitively using strings.Contains and the first
// match wins. A parse failure reads "parse xlsx: empty file", so the specific
// causes are listed before the generic "parse xlsx". Likewise the context
// patterns come before "fetch object".
package core

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// ruleActions is the suggested fix for each rule violation code.
var ruleActions = map[string]string{
	CodeBadHeaders:    "Use the template header row exactly, in the same order",
	CodeDuplicates:    "Remove or correct the repeated values",
	CodeMissingColumn: "Add the column to the header row",
	CodeEmptyCells:    "Fill every cell, including the last column",
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File errors. Specific causes before the generic parse patterns.
	{"file too large", UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Remove unused sheets or rows and try again",
		Code:    "FILE001",
	}},
	{"empty file", UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Upload a spreadsheet with a header row and data",
		Code:    "FILE002",
	}},
	{"sheet not found", UserMessage{
		Message: "The requested sheet does not exist in the workbook",
		Action:  "Check the sheet name or leave it blank to use the first sheet",
		Code:    "FILE003",
	}},
	{"no header row", UserMessage{
		Message: "The sheet has no header row",
		Action:  "Put the column names in the first row",
		Code:    "FILE004",
	}},
	{"parse xlsx", UserMessage{
		Message: "File is not a readable Excel workbook",
		Action:  "Save the file as .xlsx and upload it again",
		Code:    "FILE005",
	}},
	{"parse csv", UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Ensure the file is comma-separated with quoted text where needed",
		Code:    "FILE006",
	}},
	{"no file provided", UserMessage{
		Message: "No file was provided",
		Action:  "Send the spreadsheet in file_base64 or name an S3 object",
		Code:    "FILE007",
	}},

	// Request errors.
	{"illegal base64", UserMessage{
		Message: "File content is not valid base64",
		Action:  "Encode the file bytes with standard base64",
		Code:    "REQ001",
	}},
	{"decode file", UserMessage{
		Message: "File content is not valid base64",
		Action:  "Encode the file bytes with standard base64",
		Code:    "REQ001",
	}},
	{"unsupported format", UserMessage{
		Message: "The file format is not supported",
		Action:  "Use xlsx or csv",
		Code:    "REQ002",
	}},
	{"invalid request", UserMessage{
		Message: "The request body is malformed",
		Action:  "Send a JSON object with a file_base64 field",
		Code:    "REQ003",
	}},

	// Cancellation. Before the source patterns so an interrupted fetch
	// reports the timeout rather than an unreadable object.
	{"context canceled", UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "UPL005",
	}},

	// Source errors.
	{"storage disabled", UserMessage{
		Message: "Reading files from storage is not enabled",
		Action:  "Send the file inline in file_base64",
		Code:    "SRC001",
	}},
	{"fetch object", UserMessage{
		Message: "The file could not be read from storage",
		Action:  "Check the bucket and key and that the object exists",
		Code:    "SRC002",
	}},

	// Service errors.
	{"too many validations", UserMessage{
		Message: "System is busy validating other files",
		Action:  "Please wait a moment and try again",
		Code:    "BUSY001",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Rule violations map to their own code; anything else is matched against
// the known patterns, falling back to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if verr, ok := asValidationError(err); ok {
		return UserMessage{Message: verr.Message, Action: ruleActions[verr.Code], Code: verr.Code}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

func asValidationError(err error) (ValidationError, bool) {
	var verr ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	var pverr *ValidationError
	if errors.As(err, &pverr) && pverr != nil {
		return *pverr, true
	}
	return ValidationError{}, false
}
