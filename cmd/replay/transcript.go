package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Transcript is a scripted counterpart side of one conversation
type Transcript struct {
	SessionID string   `yaml:"session_id"`
	Messages  []string `yaml:"messages"`
}

// LoadTranscript reads a YAML transcript, or a plain text file with one
// message per line where blank lines and lines starting with # are skipped
func LoadTranscript(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	var t *Transcript
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		t, err = parseYAMLTranscript(data)
	default:
		t, err = parseTextTranscript(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if t.SessionID == "" {
		t.SessionID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return t, nil
}

func parseYAMLTranscript(data []byte) (*Transcript, error) {
	var t Transcript
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if len(t.Messages) == 0 {
		return nil, fmt.Errorf("transcript has no messages")
	}
	return &t, nil
}

func parseTextTranscript(data []byte) (*Transcript, error) {
	var t Transcript
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		t.Messages = append(t.Messages, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(t.Messages) == 0 {
		return nil, fmt.Errorf("transcript has no messages")
	}
	return &t, nil
}
