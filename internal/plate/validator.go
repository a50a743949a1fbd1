package plate

import "regexp"

// plateFormat is the single source of truth for a well-formed plate:
// two letters, two digits, two letters, four digits, upper case only.
var plateFormat = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z]{2}[0-9]{4}$`)

// IsValidFormat reports whether text is a structurally valid plate. There is
// no partial-match leniency.
func IsValidFormat(text string) bool {
	return plateFormat.MatchString(text)
}
