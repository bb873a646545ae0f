package upload

import (
	"strings"
)

// Kind classifies an upload failure into an actionable category.
type Kind string

const (
	KindConfigurationMissing Kind = "configuration-missing"
	KindInvalidInput         Kind = "invalid-input"
	KindAccessDenied         Kind = "access-denied"
	KindBucketMissing        Kind = "bucket-missing"
	KindTimeout              Kind = "timeout"
	KindNetwork              Kind = "network"
	KindCORS                 Kind = "cors"
	KindUnclassified         Kind = "unclassified"
)

// Error is a classified upload failure. Message is what the user sees;
// Cause keeps the raw store or transport error for diagnostics.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Cause }

// classifyRule maps raw error text onto a Kind. Rules are evaluated in
// order and the first matching substring wins, so specific store errors
// must sit above the generic transport ones.
type classifyRule struct {
	substrings []string
	kind       Kind
	message    string
}

var classifyRules = []classifyRule{
	{
		substrings: []string{"AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "403"},
		kind:       KindAccessDenied,
		message:    "Access denied by storage. Check your credentials and bucket permissions.",
	},
	{
		substrings: []string{"NoSuchBucket"},
		kind:       KindBucketMissing,
		message:    "Bucket not found. Check the bucket name and that it exists.",
	},
	{
		substrings: []string{"Timeout", "timeout", "deadline exceeded"},
		kind:       KindTimeout,
		message:    "Upload timed out. Check your network connection and try again.",
	},
	{
		substrings: []string{"no such host", "connection refused", "dial tcp", "network"},
		kind:       KindNetwork,
		message:    "Network error reaching storage. Check your internet connection.",
	},
	{
		substrings: []string{"CORS", "cors"},
		kind:       KindCORS,
		message:    "Storage rejected the request origin. Check the bucket CORS rules.",
	},
}

// Classify maps a raw store or transport error onto the taxonomy,
// preserving err as the cause.
func Classify(err error) *Error {
	msg := err.Error()
	for _, rule := range classifyRules {
		for _, sub := range rule.substrings {
			if strings.Contains(msg, sub) {
				return &Error{Kind: rule.kind, Message: rule.message, Cause: err}
			}
		}
	}
	return &Error{Kind: KindUnclassified, Message: "Upload failed: " + msg, Cause: err}
}

func configurationMissing(fields []string) *Error {
	return &Error{
		Kind:    KindConfigurationMissing,
		Message: "Storage is not configured: missing " + strings.Join(fields, ", ") + ".",
	}
}

func invalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

func timedOut(cause error) *Error {
	return &Error{
		Kind:    KindTimeout,
		Message: "Upload timed out. Check your network connection and try again.",
		Cause:   cause,
	}
}
