package configutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// layerFiles lists the files making up the configuration `name`, lowest priority first.
//
//  1. <name>.<ext>
//  2. <name>.local.<ext>
func layerFiles(name string) []string {
	ext := filepath.Ext(name)
	return []string{name, strings.TrimSuffix(name, ext) + ".local" + ext}
}

// readLayers merges every existing layer of `name` over `out`, only the options
// set in a layer replace what is already in `out`.
func readLayers[T any](name string, out *T) (bool, error) {
	found := false
	for _, file := range layerFiles(name) {
		content, err := os.ReadFile(file)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return found, err
		}
		found = true

		var layer T
		err = json5.Unmarshal(content, &layer)
		if err != nil {
			return found, fmt.Errorf("parse %s: %w", file, err)
		}
		err = mergo.Merge(out, layer, mergo.WithOverride)
		if err != nil {
			return found, fmt.Errorf("merge %s: %w", file, err)
		}
		slog.Debug("read config layer", "file", file)
	}
	return found, nil
}

// Load resolves the configuration of the application, later steps win:
//
//  1. `defaults`
//  2. the layers of `name` (see layerFiles), a missing file is not an error
//  3. the environment, through `env`, after `envFiles` are loaded into it
func Load[T any](name string, defaults T, env func(*T) error, envFiles ...string) (T, error) {
	out := defaults

	err := LoadEnv(envFiles...)
	if err != nil {
		return out, err
	}

	found, err := readLayers(name, &out)
	if err != nil {
		return out, fmt.Errorf("read config %s: %w", name, err)
	}
	if !found {
		slog.Debug("no config file, using defaults", "name", name)
	}

	if env != nil {
		err = env(&out)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
