package config

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// parseArgvData decodes a system_* helper file: a flat argv stored as a
// sequence of null-terminated strings, ended by the end of file or an
// empty string.
func parseArgvData(name string, data []byte) ([]string, error) {
	var argv []string
	for len(data) > 0 {
		i := bytes.IndexByte(data, 0)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s: unterminated string", ErrBadArtifact, name)
		}
		if i == 0 {
			break
		}
		argv = append(argv, string(data[:i]))
		data = data[i+1:]
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: %s: empty argv", ErrBadArtifact, name)
	}
	return argv, nil
}

// parseFonts reads the newline-separated font list. Every path must be
// absolute; at least one is required.
func parseFonts(data []byte) ([]string, error) {
	var fonts []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !filepath.IsAbs(line) {
			return nil, fmt.Errorf("%w: fonts: %q is not an absolute path", ErrBadArtifact, line)
		}
		fonts = append(fonts, line)
	}
	if len(fonts) == 0 {
		return nil, fmt.Errorf("%w: fonts: no entries", ErrBadArtifact)
	}
	return fonts, nil
}

// parseLayouts reads the single comma-separated line of keyboard layout
// names. An effectively empty file selects "us".
func parseLayouts(data []byte) []string {
	line := strings.TrimSpace(strings.SplitN(string(data), "\n", 2)[0])
	var out []string
	for _, part := range strings.Split(line, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"us"}
	}
	return out
}
