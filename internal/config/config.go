// Package config handles configuration management using Viper
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bnema/waycomp/internal/compositor"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config represents the compositor configuration
type Config struct {
	Output        OutputConfig        `mapstructure:"output"`
	InputMethod   InputMethodConfig   `mapstructure:"input_method"`
	Evdev         EvdevConfig         `mapstructure:"evdev"`
	Shell         ShellConfig         `mapstructure:"shell"`
	Zoom          ZoomConfig          `mapstructure:"zoom"`
	Screenshooter ScreenshooterConfig `mapstructure:"screenshooter"`
	Recorder      RecorderConfig      `mapstructure:"recorder"`
	IPC           IPCConfig           `mapstructure:"ipc"`
	Console       ConsoleConfig       `mapstructure:"console"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// OutputConfig describes the headless output
type OutputConfig struct {
	Name      string `mapstructure:"name"`
	Width     int32  `mapstructure:"width"`
	Height    int32  `mapstructure:"height"`
	Scale     int32  `mapstructure:"scale"`
	Transform string `mapstructure:"transform"` // normal, 90, 180, 270, flipped, flipped-90, ...
	Refresh   int32  `mapstructure:"refresh"`   // mHz
}

// InputMethodConfig points at the input method helper
type InputMethodConfig struct {
	Path string `mapstructure:"path"` // Empty disables the helper
}

// EvdevConfig contains input device settings
type EvdevConfig struct {
	Devices string   `mapstructure:"devices"` // Glob of event nodes
	Ignore  []string `mapstructure:"ignore"`  // Device name substrings to skip
	Grab    bool     `mapstructure:"grab"`    // Take devices exclusively

	// Calibration maps a device name to a 6 value absolute calibration matrix
	Calibration map[string][]float64 `mapstructure:"calibration"`
}

// ShellConfig contains desktop shell settings
type ShellConfig struct {
	BindingModifier string `mapstructure:"binding_modifier"` // ctrl, alt, super or shift
	Exposay         bool   `mapstructure:"exposay"`
}

// ZoomConfig contains output magnification settings
type ZoomConfig struct {
	Increment float64 `mapstructure:"increment"`
	MaxLevel  float64 `mapstructure:"max_level"`
}

// ScreenshooterConfig points at the screenshot helper
type ScreenshooterConfig struct {
	Path string `mapstructure:"path"`
}

// RecorderConfig contains screen recording settings
type RecorderConfig struct {
	Filename string `mapstructure:"filename"`
}

// IPCConfig contains control socket settings
type IPCConfig struct {
	Socket string `mapstructure:"socket"` // Empty means the runtime directory default
}

// ConsoleConfig contains the SSH status console settings
type ConsoleConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	Address       string   `mapstructure:"address"`
	HostKeyPath   string   `mapstructure:"host_key_path"`
	Whitelist     []string `mapstructure:"whitelist"`      // Allowed SSH key fingerprints
	WhitelistOnly bool     `mapstructure:"whitelist_only"` // Reject keys not in the whitelist
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	FileLogging bool   `mapstructure:"file_logging"` // Enable/disable file logging
	LogLevel    string `mapstructure:"log_level"`    // Override LOG_LEVEL env var
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Output: OutputConfig{
			Name:      "headless",
			Width:     1024,
			Height:    640,
			Scale:     1,
			Transform: "normal",
			Refresh:   60000,
		},
		InputMethod: InputMethodConfig{
			Path: "/usr/libexec/weston-keyboard",
		},
		Evdev: EvdevConfig{
			Devices:     "/dev/input/event*",
			Ignore:      []string{},
			Grab:        false,
			Calibration: map[string][]float64{},
		},
		Shell: ShellConfig{
			BindingModifier: "super",
			Exposay:         true,
		},
		Zoom: ZoomConfig{
			Increment: 0.07,
			MaxLevel:  0.95,
		},
		Screenshooter: ScreenshooterConfig{
			Path: "/usr/libexec/weston-screenshooter",
		},
		Recorder: RecorderConfig{
			Filename: "capture.wcap",
		},
		IPC: IPCConfig{
			Socket: "",
		},
		Console: ConsoleConfig{
			Enabled:       false,
			Address:       "127.0.0.1:52526",
			HostKeyPath:   "",
			Whitelist:     []string{},
			WhitelistOnly: true,
		},
		Logging: LoggingConfig{
			FileLogging: false,
			LogLevel:    "", // Empty means use LOG_LEVEL env var
		},
	}

	mu  sync.RWMutex
	cfg *Config

	// Override config path if set
	configPathOverride string

	changeHandlers []func(*Config)
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

func configDirs() []string {
	var dirs []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, filepath.Join(xdg, "waycomp"))
	} else if home := os.Getenv("HOME"); home != "" {
		dirs = append(dirs, filepath.Join(home, ".config", "waycomp"))
	}
	return append(dirs, "/etc/waycomp", ".")
}

func setDefaults() {
	d := DefaultConfig

	viper.SetDefault("output.name", d.Output.Name)
	viper.SetDefault("output.width", d.Output.Width)
	viper.SetDefault("output.height", d.Output.Height)
	viper.SetDefault("output.scale", d.Output.Scale)
	viper.SetDefault("output.transform", d.Output.Transform)
	viper.SetDefault("output.refresh", d.Output.Refresh)

	viper.SetDefault("input_method.path", d.InputMethod.Path)

	viper.SetDefault("evdev.devices", d.Evdev.Devices)
	viper.SetDefault("evdev.ignore", d.Evdev.Ignore)
	viper.SetDefault("evdev.grab", d.Evdev.Grab)
	viper.SetDefault("evdev.calibration", d.Evdev.Calibration)

	viper.SetDefault("shell.binding_modifier", d.Shell.BindingModifier)
	viper.SetDefault("shell.exposay", d.Shell.Exposay)

	viper.SetDefault("zoom.increment", d.Zoom.Increment)
	viper.SetDefault("zoom.max_level", d.Zoom.MaxLevel)

	viper.SetDefault("screenshooter.path", d.Screenshooter.Path)
	viper.SetDefault("recorder.filename", d.Recorder.Filename)
	viper.SetDefault("ipc.socket", d.IPC.Socket)

	viper.SetDefault("console.enabled", d.Console.Enabled)
	viper.SetDefault("console.address", d.Console.Address)
	viper.SetDefault("console.host_key_path", d.Console.HostKeyPath)
	viper.SetDefault("console.whitelist", d.Console.Whitelist)
	viper.SetDefault("console.whitelist_only", d.Console.WhitelistOnly)

	viper.SetDefault("logging.file_logging", d.Logging.FileLogging)
	viper.SetDefault("logging.log_level", d.Logging.LogLevel)
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName("waycomp")
	viper.SetConfigType("toml")

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		for _, dir := range configDirs() {
			viper.AddConfigPath(dir)
		}
	}

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return load()
}

func load() error {
	next := &Config{}
	if err := viper.Unmarshal(next); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	Set(next)
	return nil
}

// Validate checks values that would otherwise fail deep inside the
// compositor.
func (c *Config) Validate() error {
	if c.Output.Width <= 0 || c.Output.Height <= 0 {
		return fmt.Errorf("output size %dx%d must be positive", c.Output.Width, c.Output.Height)
	}
	if _, err := compositor.ParseTransform(c.Output.Transform); err != nil {
		return err
	}
	if c.Shell.BindingModifier != "" && compositor.ParseModifier(c.Shell.BindingModifier) == 0 {
		return fmt.Errorf("unknown binding modifier %q", c.Shell.BindingModifier)
	}
	if c.Zoom.MaxLevel < 0 || c.Zoom.MaxLevel >= 1 {
		return fmt.Errorf("zoom max_level %.2f must be in [0, 1)", c.Zoom.MaxLevel)
	}
	for name, m := range c.Evdev.Calibration {
		if len(m) != 6 {
			return fmt.Errorf("calibration for %q has %d values, want 6", name, len(m))
		}
	}
	return nil
}

// CalibrationMatrices returns the calibration entries as fixed-size
// matrices.
func (e EvdevConfig) CalibrationMatrices() map[string][6]float64 {
	out := make(map[string][6]float64, len(e.Calibration))
	for name, m := range e.Calibration {
		if len(m) != 6 {
			continue
		}
		var fixed [6]float64
		copy(fixed[:], m)
		out[name] = fixed
	}
	return out
}

// Get returns the current configuration
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if cfg == nil {
		// Return defaults if not initialized
		return &DefaultConfig
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	mu.Lock()
	cfg = c
	mu.Unlock()
}

// OnChange registers fn to run with the new configuration after the file
// changes on disk. Edits that fail validation keep the current one.
func OnChange(fn func(*Config)) {
	mu.Lock()
	changeHandlers = append(changeHandlers, fn)
	mu.Unlock()
}

// WatchConfig reloads the file whenever it changes. errFn receives reload
// failures.
func WatchConfig(errFn func(error)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		if err := load(); err != nil {
			if errFn != nil {
				errFn(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		mu.RLock()
		handlers := append([](func(*Config))(nil), changeHandlers...)
		current := cfg
		mu.RUnlock()
		for _, fn := range handlers {
			fn(current)
		}
	})
	viper.WatchConfig()
}

// Save saves the current configuration to file
func Save() error {
	configPath := GetConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		if os.IsPermission(err) && strings.Contains(configPath, "/etc/") {
			return fmt.Errorf("failed to create config directory %s: permission denied. Try running with sudo", dir)
		}
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}

	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "waycomp", "waycomp.toml")
	}

	if os.Getuid() == 0 {
		return "/etc/waycomp/waycomp.toml"
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/waycomp/waycomp.toml"
	}

	return filepath.Join(home, ".config", "waycomp", "waycomp.toml")
}

// AddSSHKeyToWhitelist adds an SSH key fingerprint to the console whitelist
func AddSSHKeyToWhitelist(fingerprint string) error {
	cfg := Get()

	for _, fp := range cfg.Console.Whitelist {
		if fp == fingerprint {
			return fmt.Errorf("key already whitelisted")
		}
	}

	cfg.Console.Whitelist = append(cfg.Console.Whitelist, fingerprint)
	viper.Set("console.whitelist", cfg.Console.Whitelist)
	return Save()
}

// IsSSHKeyWhitelisted checks if an SSH key fingerprint is whitelisted
func IsSSHKeyWhitelisted(fingerprint string) bool {
	for _, fp := range Get().Console.Whitelist {
		if fp == fingerprint {
			return true
		}
	}
	return false
}

// RemoveSSHKeyFromWhitelist removes a fingerprint from the console whitelist
func RemoveSSHKeyFromWhitelist(fingerprint string) error {
	cfg := Get()

	kept := make([]string, 0, len(cfg.Console.Whitelist))
	for _, fp := range cfg.Console.Whitelist {
		if fp != fingerprint {
			kept = append(kept, fp)
		}
	}
	if len(kept) == len(cfg.Console.Whitelist) {
		return fmt.Errorf("key not in whitelist: %s", fingerprint)
	}

	return setWhitelist(cfg, kept)
}

// ClearSSHWhitelist empties the console whitelist and returns how many keys it held
func ClearSSHWhitelist() (int, error) {
	cfg := Get()
	n := len(cfg.Console.Whitelist)
	if n == 0 {
		return 0, nil
	}
	return n, setWhitelist(cfg, []string{})
}

func setWhitelist(cfg *Config, whitelist []string) error {
	mu.Lock()
	cfg.Console.Whitelist = whitelist
	mu.Unlock()
	viper.Set("console.whitelist", whitelist)
	return Save()
}
