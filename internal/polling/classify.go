package polling

import (
	"errors"
	"regexp"
	"strings"
)

// UnknownErrorClass is used when an error yields no usable code or message.
const UnknownErrorClass = "unknown_error"

var nonSlugChars = regexp.MustCompile(`[^a-z0-9-]+`)

// ClassifyError derives a stable slug for err. The first ErrorCode() found in
// the chain wins; otherwise the message of the innermost wrapped error is used.
func ClassifyError(err error) string {
	if err == nil {
		return UnknownErrorClass
	}

	var raw string
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		raw = coded.ErrorCode()
	}
	if strings.TrimSpace(raw) == "" {
		raw = rootCause(err).Error()
	}

	slug := nonSlugChars.ReplaceAllString(strings.ToLower(raw), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return UnknownErrorClass
	}
	return slug
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
