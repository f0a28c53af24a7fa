package utils

import (
	"regexp"
	"strings"

	apperrors "github.com/Kosench/go-link-shortener/internal/errors"
)

const (
	MinShortCodeLength = 6
	MaxShortCodeLength = 8
)

var shortCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{6,8}$`)

// Корневые маршруты сервиса, которые иначе перекрыли бы редирект
var reservedShortCodes = map[string]struct{}{
	"health":  {},
	"healthz": {},
}

// IsReservedShortCode reports whether code is taken by a fixed route.
func IsReservedShortCode(code string) bool {
	_, ok := reservedShortCodes[code]
	return ok
}

// ValidateShortCode checks syntax only; uniqueness is decided by the store on insert.
func ValidateShortCode(code string) error {
	if !shortCodePattern.MatchString(code) {
		return apperrors.NewValidationError(
			"shortCode",
			"Short code must be 6-8 alphanumeric characters.",
			apperrors.ErrInvalidShortCode,
		)
	}
	return nil
}

func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return apperrors.NewValidationError("url", "URL is required", apperrors.ErrEmptyURL)
	}
	return nil
}

func SanitizeInput(input string) string {
	// Удаляем управляющие символы и обрезаем пробелы
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, input)

	return strings.TrimSpace(result)
}
