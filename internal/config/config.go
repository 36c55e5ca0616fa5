// Package config discovers and loads the server configuration
// directory: the fixed-name display artifacts (fonts, helper argv
// files, keyboard control scheme, theme, device preferences) plus an
// optional rosewm.toml with ambient tunables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/rosewm/rosewm/internal/logger"
	"github.com/rosewm/rosewm/internal/scheme"
)

var (
	ErrMissingArtifact = errors.New("config: mandatory artifact missing")
	ErrBadArtifact     = errors.New("config: malformed artifact")
)

// Helper identifies an optional system helper process.
type Helper uint8

const (
	HelperBackground Helper = iota
	HelperDispatcher
	HelperNotificationDaemon
	HelperPanel
	HelperScreenLocker
	helperCount
)

var helperFiles = [helperCount]string{
	"system_background",
	"system_dispatcher",
	"system_notification_daemon",
	"system_panel",
	"system_screen_locker",
}

func (h Helper) String() string {
	if h < helperCount {
		return helperFiles[h]
	}
	return fmt.Sprintf("helper(%d)", uint8(h))
}

// Helpers returns every known helper in file order.
func Helpers() []Helper {
	out := make([]Helper, helperCount)
	for i := range out {
		out[i] = Helper(i)
	}
	return out
}

// Ambient are the rosewm.toml tunables.
type Ambient struct {
	Log     LogConfig     `mapstructure:"log"`
	Pointer PointerConfig `mapstructure:"pointer"`
	IPC     IPCConfig     `mapstructure:"ipc"`
}

type LogConfig struct {
	// Level overrides ROSEWM_LOG_LEVEL when non-empty.
	Level string `mapstructure:"level"`
}

type PointerConfig struct {
	IdleDelayMS int `mapstructure:"idle_delay_ms"`
}

type IPCConfig struct {
	// Directory for the control socket; empty selects the runtime dir.
	Directory string `mapstructure:"directory"`
}

// DefaultAmbient provides sensible defaults
var DefaultAmbient = Ambient{
	Pointer: PointerConfig{IdleDelayMS: 500},
}

// Config is the fully loaded configuration.
type Config struct {
	// Dirs is the search path that produced this config, highest
	// priority first.
	Dirs []string

	Fonts    []string
	Terminal []string
	Layouts  []string
	Scheme   *scheme.Scheme
	Theme    Theme
	Helpers  map[Helper][]string

	// PrefsPath is where device preferences persist (always under the
	// user directory, never /etc).
	PrefsPath string

	Ambient Ambient
}

// SearchDirs returns the artifact search path: the user config dir then
// the system one.
func SearchDirs() []string {
	return []string{
		filepath.Join(xdg.ConfigHome, "rosewm"),
		"/etc/rosewm",
	}
}

// Load discovers and loads from the standard search path.
func Load() (*Config, error) {
	return LoadFrom(SearchDirs())
}

// LoadFrom loads using an explicit search path. Mandatory artifacts
// missing from every directory fail the load; every optional artifact
// degrades to its built-in default.
func LoadFrom(dirs []string) (*Config, error) {
	if len(dirs) == 0 {
		return nil, fmt.Errorf("%w: no search directories", ErrMissingArtifact)
	}
	c := &Config{
		Dirs:      dirs,
		Helpers:   make(map[Helper][]string),
		PrefsPath: filepath.Join(dirs[0], "device_preferences"),
		Ambient:   loadAmbient(dirs),
	}

	data, ok := readArtifact(dirs, "fonts")
	if !ok {
		return nil, fmt.Errorf("%w: fonts", ErrMissingArtifact)
	}
	fonts, err := parseFonts(data)
	if err != nil {
		return nil, err
	}
	c.Fonts = fonts

	data, ok = readArtifact(dirs, "system_terminal")
	if !ok {
		return nil, fmt.Errorf("%w: system_terminal", ErrMissingArtifact)
	}
	c.Terminal, err = parseArgvData("system_terminal", data)
	if err != nil {
		return nil, err
	}

	if data, ok = readArtifact(dirs, "keyboard_layouts"); ok {
		c.Layouts = parseLayouts(data)
	} else {
		c.Layouts = []string{"us"}
	}

	c.Scheme = scheme.Default()
	if data, ok = readArtifact(dirs, "keyboard_control_scheme"); ok {
		if s, err := scheme.Load(bytesReader(data)); err != nil {
			logger.Warn("control scheme rejected, using defaults", "err", err)
		} else {
			c.Scheme = s
		}
	}

	c.Theme = DefaultTheme()
	if data, ok = readArtifact(dirs, "theme"); ok {
		if t, err := ParseTheme(bytesReader(data)); err != nil {
			logger.Warn("theme rejected, using defaults", "err", err)
		} else {
			c.Theme = t
		}
	}

	for _, h := range Helpers() {
		data, ok := readArtifact(dirs, helperFiles[h])
		if !ok {
			continue
		}
		argv, err := parseArgvData(helperFiles[h], data)
		if err != nil {
			logger.Warn("helper argv rejected", "helper", h.String(), "err", err)
			continue
		}
		c.Helpers[h] = argv
	}

	return c, nil
}

// readArtifact returns the first hit along the search path.
func readArtifact(dirs []string, name string) ([]byte, bool) {
	for _, dir := range dirs {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return data, true
		}
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("cannot read artifact", "path", filepath.Join(dir, name), "err", err)
		}
	}
	return nil, false
}

func bytesReader(data []byte) io.Reader { return bytes.NewReader(data) }

// loadAmbient reads rosewm.toml through viper. A missing file keeps the
// defaults; a malformed one is reported and ignored.
func loadAmbient(dirs []string) Ambient {
	viper.SetConfigName("rosewm")
	viper.SetConfigType("toml")
	for _, dir := range dirs {
		viper.AddConfigPath(dir)
	}

	viper.SetDefault("log.level", DefaultAmbient.Log.Level)
	viper.SetDefault("pointer.idle_delay_ms", DefaultAmbient.Pointer.IdleDelayMS)
	viper.SetDefault("ipc.directory", DefaultAmbient.IPC.Directory)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logger.Warn("rosewm.toml rejected, using defaults", "err", err)
			return DefaultAmbient
		}
	}

	var a Ambient
	if err := viper.Unmarshal(&a); err != nil {
		logger.Warn("rosewm.toml rejected, using defaults", "err", err)
		return DefaultAmbient
	}
	return a
}
