package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// readInput reads content from a file or stdin
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == InputSourceStdin {
		return io.ReadAll(stdin)
	}

	return os.ReadFile(path)
}

// writeOutput writes content to stdout when dir is empty, otherwise to
// dir/<name>.html, creating parent directories for nested names.
func writeOutput(dir, name string, data []byte, stdout io.Writer) error {
	if dir == "" {
		_, err := stdout.Write(data)
		return err
	}

	target := filepath.Join(dir, filepath.FromSlash(name)+OutputFileExt)
	if err := os.MkdirAll(filepath.Dir(target), DirPermissions); err != nil {
		return err
	}
	return os.WriteFile(target, data, FilePermissions)
}

// loadBindings merges the bindings of --data-file and --data, the latter
// taking precedence.
func loadBindings(dataJSON, dataFile string, stdin io.Reader) (map[string]any, error) {
	bindings := map[string]any{}

	if dataFile != "" {
		raw, err := readInput(dataFile, stdin)
		if err != nil {
			return nil, fail(ExitCodeInputError, ErrMsgReadFileFailed, err)
		}
		fileData, err := decodeBindings(raw, filepath.Ext(dataFile))
		if err != nil {
			return nil, err
		}
		for k, v := range fileData {
			bindings[k] = v
		}
	}

	if dataJSON != "" {
		var inline map[string]any
		if err := json.Unmarshal([]byte(dataJSON), &inline); err != nil {
			return nil, fail(ExitCodeInputError, ErrMsgInvalidJSON, err)
		}
		for k, v := range inline {
			bindings[k] = v
		}
	}
	return bindings, nil
}

// decodeBindings decodes YAML for .yaml and .yml files and JSON otherwise.
func decodeBindings(raw []byte, ext string) (map[string]any, error) {
	out := map[string]any{}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &out); err != nil {
			return nil, fail(ExitCodeInputError, ErrMsgInvalidYAML, err)
		}
	default:
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fail(ExitCodeInputError, ErrMsgInvalidJSON, err)
		}
	}
	return out, nil
}
