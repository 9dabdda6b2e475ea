package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadTextTranscript(t *testing.T) {
	path := writeFile(t, "bank-scam.txt", "# kyc scam\nYour account is blocked\n\n  Send OTP now  \n")

	tr, err := LoadTranscript(path)
	require.NoError(t, err)
	assert.Equal(t, "bank-scam", tr.SessionID)
	assert.Equal(t, []string{"Your account is blocked", "Send OTP now"}, tr.Messages)
}

func TestLoadYAMLTranscript(t *testing.T) {
	path := writeFile(t, "t.yaml", "session_id: abc\nmessages:\n  - hello\n  - pay now\n")

	tr, err := LoadTranscript(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", tr.SessionID)
	assert.Len(t, tr.Messages, 2)
}

func TestLoadEmptyTranscriptFails(t *testing.T) {
	_, err := LoadTranscript(writeFile(t, "empty.txt", "# nothing\n\n"))
	assert.Error(t, err)

	_, err = LoadTranscript(writeFile(t, "empty.yaml", "session_id: x\n"))
	assert.Error(t, err)
}

func TestReplayPrintsTurnsAndEvidence(t *testing.T) {
	path := writeFile(t, "scam.txt", strings.Join([]string{
		"Dear customer your SBI account is locked",
		"Transfer to 123456789012 IFSC SBIN0004321",
		"Call 9123456780 or open https://sbi-kyc-update.example.in",
	}, "\n"))
	cfgPath := writeFile(t, "config.yaml", "logger:\n  level: error\n")

	var out bytes.Buffer
	err := run(context.Background(), &out, options{configPath: cfgPath, seed: 7}, []string{path})
	require.NoError(t, err)

	s := out.String()
	assert.Contains(t, s, "=== scam ===")
	assert.Contains(t, s, "active=false messages=3")
	assert.Contains(t, s, "SBIN0004321")
	assert.Contains(t, s, "9123456780")
}

func TestReplayJSON(t *testing.T) {
	path := writeFile(t, "one.txt", "hello")
	cfgPath := writeFile(t, "config.yaml", "logger:\n  level: error\n")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), &out, options{configPath: cfgPath, seed: 1, asJSON: true}, []string{path}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"step":1`)
	assert.Contains(t, lines[1], `"sessionId":"one"`)
}
