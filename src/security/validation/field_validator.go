package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/username/optionstaxhub/backend/src/logger"
	"github.com/username/optionstaxhub/backend/src/models"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	DefaultMaxStringLength = 255
	MaxSymbolLength        = 21 // OCC option symbols run up to 21 characters
	MaxDescriptionLength   = 1024
	MaxTaxableIncome       = 1_000_000_000
)

// --- String Validators ---

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateStringRegex checks if a string matches a given regex pattern.
func ValidateStringRegex(s string, pattern *regexp.Regexp, fieldName, formatDescription string) error {
	if !pattern.MatchString(s) {
		return fmt.Errorf("%w: %s ('%s') is not in the expected format (%s)", ErrValidationFailed, fieldName, s, formatDescription)
	}
	return nil
}

// --- Numeric Validators ---

// ValidateFloatString parses a string to float and checks if it's within a range.
// Empty strings pass with a zero value; callers that require the field should
// run ValidateStringNotEmpty first.
func ValidateFloatString(s, fieldName string, allowNegative bool, minVal, maxVal float64) (float64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, nil
	}

	val, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s ('%s') is not a valid number: %v", ErrValidationFailed, fieldName, s, err)
	}
	if !allowNegative && val < 0 {
		logger.L.Warn("Negative value not allowed for field", "field", fieldName, "value", val)
		return 0, fmt.Errorf("%w: %s cannot be negative", ErrValidationFailed, fieldName)
	}
	if val < minVal || val > maxVal {
		logger.L.Warn("Float value out of range", "field", fieldName, "value", val, "min", minVal, "max", maxVal)
		return 0, fmt.Errorf("%w: %s must be between %.2f and %.2f, got %.2f", ErrValidationFailed, fieldName, minVal, maxVal, val)
	}
	return val, nil
}

// ValidateIntString parses a string to int and checks if it's within a range.
func ValidateIntString(s, fieldName string, allowNegative bool, minVal, maxVal int) (int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, nil
	}

	val, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %s ('%s') is not a valid integer: %v", ErrValidationFailed, fieldName, s, err)
	}
	if !allowNegative && val < 0 {
		logger.L.Warn("Negative value not allowed for field", "field", fieldName, "value", val)
		return 0, fmt.Errorf("%w: %s cannot be negative", ErrValidationFailed, fieldName)
	}
	if val < minVal || val > maxVal {
		logger.L.Warn("Integer value out of range", "field", fieldName, "value", val, "min", minVal, "max", maxVal)
		return 0, fmt.Errorf("%w: %s must be between %d and %d, got %d", ErrValidationFailed, fieldName, minVal, maxVal, val)
	}
	return val, nil
}

// --- Specific Format Validators ---

var (
	tickerSymbolRegex = regexp.MustCompile(`^[A-Z0-9.\-/ ]+$`)
)

// ValidateTickerSymbol checks if a string is a plausible US ticker or OCC option symbol.
func ValidateTickerSymbol(s string) error {
	trimmed := strings.ToUpper(strings.TrimSpace(s))
	if trimmed == "" {
		return nil
	}
	if err := ValidateStringMaxLength(trimmed, MaxSymbolLength, "Symbol"); err != nil {
		return err
	}
	return ValidateStringRegex(trimmed, tickerSymbolRegex, "Symbol", "uppercase letters, digits, '.', '-', '/'")
}

// ValidateFilingStatus checks a client-supplied filing status string.
func ValidateFilingStatus(s string) (models.FilingStatus, error) {
	trimmed := models.FilingStatus(strings.ToLower(strings.TrimSpace(s)))
	if trimmed == "" {
		return models.FilingSingle, nil
	}
	if !trimmed.Valid() {
		return "", fmt.Errorf("%w: filing status ('%s') is not recognized", ErrValidationFailed, s)
	}
	return trimmed, nil
}
