// Package validate holds the pure field predicates shared by the form
// handlers. None of them know about any particular form; callers aggregate
// results into a field-name → message map.
package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"ticketapp/internal/models"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func IsRequired(value string) bool {
	return strings.TrimSpace(value) != ""
}

func IsValidEmail(value string) bool {
	return emailPattern.MatchString(value)
}

func MinLength(value string, min int) bool {
	return utf8.RuneCountInString(value) >= min
}

func MaxLength(value string, max int) bool {
	return utf8.RuneCountInString(value) <= max
}

func IsValidStatus(value string) bool {
	switch value {
	case models.StatusOpen, models.StatusInProgress, models.StatusClosed:
		return true
	}
	return false
}

func IsValidPriority(value string) bool {
	switch value {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
		return true
	}
	return false
}
