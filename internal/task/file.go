package task

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// taskFile is the structured (JSON/YAML) task file layout.
type taskFile struct {
	Prefix string   `json:"prefix" yaml:"prefix"`
	Items  []string `json:"items" yaml:"items"`
}

// LoadFile reads a task file. The format follows the extension: .json and
// .yaml/.yml are structured, anything else is plain text with one
// description per line, '#' comments and an optional "prefix:" first line.
func LoadFile(path string) (*List, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read task file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var tf taskFile
		if err := json.Unmarshal(data, &tf); err != nil {
			return nil, "", fmt.Errorf("failed to parse task JSON: %w", err)
		}
		return fromTaskFile(tf)
	case ".yaml", ".yml":
		var tf taskFile
		if err := yaml.Unmarshal(data, &tf); err != nil {
			return nil, "", fmt.Errorf("failed to parse task YAML: %w", err)
		}
		return fromTaskFile(tf)
	default:
		list, prefix := ParseText(string(data))
		return list, prefix, nil
	}
}

func fromTaskFile(tf taskFile) (*List, string, error) {
	list, err := NewList(tf.Items...)
	if err != nil {
		return nil, "", err
	}
	return list, tf.Prefix, nil
}

// ParseText parses the plain-text task format.
func ParseText(text string) (*List, string) {
	var prefix string
	var body []string
	first := true
	for _, line := range SplitLines(text) {
		if strings.HasPrefix(line, "#") {
			continue
		}
		if first && strings.HasPrefix(strings.ToLower(line), "prefix:") {
			prefix = strings.TrimSpace(line[len("prefix:"):])
			first = false
			continue
		}
		first = false
		body = append(body, line)
	}
	list := &List{}
	list.InsertBulk(strings.Join(body, "\n"))
	return list, prefix
}
