package registry

import (
	"regexp"
	"strings"
)

const (
	maxNameLength   = 64
	maxPrefixLength = 32
)

var (
	invalidNameChar = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
	multiUnderscore = regexp.MustCompile(`_{2,}`)
	leadingDigit    = regexp.MustCompile(`^[0-9]`)
)

// sanitizeName normalizes name to the grammar in spec §6.5:
// ^[A-Za-z0-9_-]+$, collapsing repeated underscores, prefixing a leading
// digit with "_", and falling back to "sanitized_function" when nothing
// survives.
func sanitizeName(name string) string {
	s := invalidNameChar.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "sanitized_function"
	}
	if leadingDigit.MatchString(s) {
		s = "_" + s
	}
	if len(s) > maxNameLength {
		s = s[:maxNameLength]
	}
	return s
}

// sanitizePrefix normalizes a provider name (or custom prefix) the same way
// sanitizeName does, but truncates to maxPrefixLength instead of
// maxNameLength. validate callers warn when the un-truncated prefix exceeds
// maxPrefixLength (see Registry.Validate).
func sanitizePrefix(prefix string) string {
	s := invalidNameChar.ReplaceAllString(prefix, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "sanitized_function"
	}
	if leadingDigit.MatchString(s) {
		s = "_" + s
	}
	if len(s) > maxPrefixLength {
		s = s[:maxPrefixLength]
	}
	return s
}

// combinePrefixedName joins an already-sanitized prefix and name with "-",
// truncating the combined result to maxNameLength. sanitizePrefix and
// sanitizeName each bound their own output independently (32 and 64 chars),
// but the registered name spec §6.5 validates is the combined
// "prefix-name" string, which must itself stay within maxNameLength (spec
// §4.8 phase 4: "Total length <= 64"). Every character in prefix, "-", and
// name is already in the ^[A-Za-z0-9_-]+$ alphabet, so slicing the combined
// string can never introduce an invalid character.
func combinePrefixedName(prefix, name string) string {
	combined := prefix + "-" + name
	if len(combined) > maxNameLength {
		combined = combined[:maxNameLength]
	}
	return combined
}
