package http

import (
	"fmt"
	"regexp"
)

const (
	// MaxLoggedResponseLength is the maximum length of response text to
	// include in logs. Longer responses are truncated so user code and
	// secrets do not end up in log aggregators.
	MaxLoggedResponseLength = 200
)

// TruncateForLogging safely truncates a response string for logging purposes.
func TruncateForLogging(response string) string {
	if len(response) <= MaxLoggedResponseLength {
		return response
	}
	return response[:MaxLoggedResponseLength] + fmt.Sprintf("... [truncated, total length=%d bytes]", len(response))
}

var secretParamRe = regexp.MustCompile(`(key|apiKey|api_key|token|access_token)=[^&"\s]+`)

// RedactURLSecrets redacts API keys and tokens from URLs in error messages,
// so query parameters like Gemini's ?key= never reach the logs.
func RedactURLSecrets(text string) string {
	if text == "" {
		return text
	}
	return secretParamRe.ReplaceAllString(text, "$1=[REDACTED]")
}
