// Package validation checks operator-supplied startup values before the
// service accepts traffic.
package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// quotingChars reach the program literally since no shell interprets them.
var quotingChars = []string{"\"", "'", "\\"}

// ValidateCommandLine validates a whitespace-delimited command string.
// The command is trusted operator configuration, so only strings that
// cannot name a program are rejected.
func ValidateCommandLine(command string) error {
	if len(strings.Fields(command)) == 0 {
		return fmt.Errorf("command cannot be empty")
	}

	if strings.ContainsAny(command, "\x00\n\r") {
		return fmt.Errorf("contains control characters")
	}

	return nil
}

// CommandLineWarnings lists characters in command that whitespace
// splitting passes through literally.
func CommandLineWarnings(command string) []string {
	var warnings []string
	for _, char := range quotingChars {
		if strings.Contains(command, char) {
			warnings = append(warnings, fmt.Sprintf("contains %q, which is passed to the program literally", char))
		}
	}
	return warnings
}

// ValidateOrigin validates a CORS allow-list entry. "*" is accepted as
// the wildcard; anything else must be an http(s) origin without a path.
func ValidateOrigin(origin string) error {
	if origin == "*" {
		return nil
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin format: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid origin scheme '%s': only http and https are allowed", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("origin must have a host")
	}

	if parsed.Path != "" && parsed.Path != "/" {
		return fmt.Errorf("origin must not contain a path")
	}

	return nil
}

// ValidateHost validates a bind host. Empty means all interfaces.
func ValidateHost(host string) error {
	dangerous := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", " ", "/"}
	for _, char := range dangerous {
		if strings.Contains(host, char) {
			return fmt.Errorf("host contains invalid character: %q", char)
		}
	}
	return nil
}
