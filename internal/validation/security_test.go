package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCommandLine(t *testing.T) {
	tests := []struct {
		name    string
		command string
		wantErr bool
	}{
		{"plain path", "/usr/local/bin/lock", false},
		{"path with args", "/usr/local/bin/lock --device nvme0 -v", false},
		{"key value arg", "/opt/verify.sh --mode=strict", false},
		{"query string", "curl -fsS -X POST http://ctl.local/lock?all=1", false},
		{"literal glob", "/usr/bin/lockall --hosts=*", false},
		{"tilde", "~/bin/lock", false},
		{"semicolon passed literally", "/bin/lock ;", false},
		{"empty", "", true},
		{"blank", "  \t ", true},
		{"newline", "/bin/lock\n/bin/other", true},
		{"carriage return", "/bin/lock\r", true},
		{"nul", "/bin/lock\x00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCommandLine(tt.command)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCommandLineWarnings(t *testing.T) {
	assert.Empty(t, CommandLineWarnings("/usr/bin/lockall --hosts=* --url=http://x/?a=1"))
	assert.Len(t, CommandLineWarnings(`/bin/lock "a b"`), 1)
	assert.Len(t, CommandLineWarnings(`/bin/lock 'a' c\ d`), 2)
}

func TestValidateOrigin(t *testing.T) {
	tests := []struct {
		origin  string
		wantErr bool
	}{
		{"*", false},
		{"https://panel.example.com", false},
		{"http://localhost:3000", false},
		{"https://panel.example.com/", false},
		{"ftp://example.com", true},
		{"javascript:alert(1)", true},
		{"https://", true},
		{"https://example.com/path", true},
		{"example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			err := ValidateOrigin(tt.origin)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateHost(t *testing.T) {
	assert.NoError(t, ValidateHost(""))
	assert.NoError(t, ValidateHost("0.0.0.0"))
	assert.NoError(t, ValidateHost("::1"))
	assert.NoError(t, ValidateHost("panic.local"))
	assert.Error(t, ValidateHost("localhost; id"))
	assert.Error(t, ValidateHost("local host"))
}
