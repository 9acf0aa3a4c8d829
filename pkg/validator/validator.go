package validator

import (
	"strings"
	"unicode/utf8"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

const maxBodyLength = 4000

func ValidateChannel(name string) ValidationErrors {
	errs := make(ValidationErrors)

	name = strings.TrimSpace(name)
	if name == "" {
		errs.Add("name", "Channel name is required")
	} else if len(name) < 2 {
		errs.Add("name", "Channel name must be at least 2 characters")
	} else if len(name) > 100 {
		errs.Add("name", "Channel name is too long")
	}

	return errs
}

func ValidateMessage(body string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(body) == "" {
		errs.Add("body", "Message body is required")
	} else if utf8.RuneCountInString(body) > maxBodyLength {
		errs.Add("body", "Message body is too long")
	}

	return errs
}

func ValidateReaction(emoji string) ValidationErrors {
	errs := make(ValidationErrors)

	if emoji == "" {
		errs.Add("emoji", "Emoji is required")
	} else if utf8.RuneCountInString(emoji) > 8 {
		errs.Add("emoji", "Emoji is too long")
	}

	return errs
}
