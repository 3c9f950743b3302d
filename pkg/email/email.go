package email

import (
	"regexp"
	"strings"
)

var addressPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Valid reports whether address looks like a deliverable email address.
func Valid(address string) bool {
	return addressPattern.MatchString(strings.TrimSpace(address))
}

// LocalPart returns the part before '@', or "" when there is none.
func LocalPart(address string) string {
	address = strings.TrimSpace(address)
	if at := strings.IndexByte(address, '@'); at > 0 {
		return address[:at]
	}
	return ""
}

// DisplayName picks the name shown for an actor: the explicit name, else the
// email local part, else "Anonymous".
func DisplayName(name, address string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if local := LocalPart(address); local != "" {
		return local
	}
	return "Anonymous"
}
