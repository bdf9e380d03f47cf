package registry

import (
	"fmt"
	"strings"
)

// DefaultBaseURL is the registry page prefix; the normalized number is appended
const DefaultBaseURL = "https://bizno.net/article/"

// NormalizeBusinessNumber strips hyphens from a business registration number
func NormalizeBusinessNumber(number string) string {
	return strings.ReplaceAll(number, "-", "")
}

// FormatBusinessNumber renders a ten digit number as XXX-XX-XXXXX.
// Input may already contain hyphens.
func FormatBusinessNumber(number string) (string, error) {
	digits := NormalizeBusinessNumber(number)
	if len(digits) != 10 {
		return "", fmt.Errorf("business number must have 10 digits, got %d", len(digits))
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("business number contains non-digit %q", r)
		}
	}
	return digits[:3] + "-" + digits[3:5] + "-" + digits[5:], nil
}

// LookupURL returns the registry page for a business number
func LookupURL(baseURL, number string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return baseURL + NormalizeBusinessNumber(number)
}
