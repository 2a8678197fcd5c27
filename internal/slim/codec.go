package slim

import (
	"fmt"
	"net/url"
	"strings"
)

// EncodeCommand renders tokens as one CRLF terminated command line.
// Each token is percent-encoded so spaces and control characters survive the trip.
func EncodeCommand(args ...string) []byte {
	escaped := make([]string, len(args))
	for i, arg := range args {
		escaped[i] = EscapeToken(arg)
	}

	return []byte(strings.Join(escaped, " ") + "\r\n")
}

// EscapeToken percent-encodes a single token. A bare "?" stays literal.
func EscapeToken(token string) string {
	if token == "?" {
		return token
	}

	return url.PathEscape(token)
}

// DecodeLine splits a received line on runs of whitespace and percent-decodes every token.
func DecodeLine(line string) ([]string, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	tokens := make([]string, len(fields))

	for i, field := range fields {
		token, err := url.PathUnescape(field)
		if err != nil {
			return nil, fmt.Errorf("%w: token %d: %w", ErrMalformedResponse, i, err)
		}
		tokens[i] = token
	}

	return tokens, nil
}

// SplitField splits a "key:value" token on its first colon.
// The value keeps any further colons intact; a token without a colon yields an empty value.
func SplitField(token string) (key, value string) {
	key, value, _ = strings.Cut(token, ":")
	return key, value
}
