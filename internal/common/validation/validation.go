// Package validation holds the contact and URL format checks shared by
// workers. Structural payload validation goes through JSON Schema in the
// workers themselves; these helpers only gate single string fields.
package validation

import "regexp"

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[\d\s\-\(\)]{10,}$`)
	urlPattern   = regexp.MustCompile(`^(https?|ftp)://[^\s/$.?#].[^\s]*$`)
)

func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePhone accepts international formats like +46 70 123 45 67.
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

func ValidateURL(url string) bool {
	return urlPattern.MatchString(url)
}
