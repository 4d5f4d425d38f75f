package domain

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

const maxQueryLength = 512

// ValidateThreshold checks that t is a similarity in [0, 1].
func ValidateThreshold(t float32) error {
	if t < 0 || t > 1 || math.IsNaN(float64(t)) {
		return NewValidationError("threshold", strconv.FormatFloat(float64(t), 'g', -1, 32), ErrInvalidThreshold)
	}
	return nil
}

// ValidateDestination checks a corpus record before it is embedded.
func ValidateDestination(d Destination) error {
	if strings.TrimSpace(d.Name) == "" {
		return NewValidationError("destination_name", d.Name, ErrInvalidDestination)
	}
	if strings.TrimSpace(d.Highlights) == "" {
		return NewValidationError("highlights", d.Highlights, ErrInvalidDestination)
	}
	return nil
}

// ValidateQuery checks a free-text recommendation query.
func ValidateQuery(q string) error {
	text := strings.TrimSpace(q)
	if text == "" {
		return NewValidationError("query", q, ErrEmptyInput)
	}
	if utf8.RuneCountInString(text) > maxQueryLength {
		return NewValidationError("query", text[:32]+"...", ErrQueryTooLong)
	}
	return nil
}
