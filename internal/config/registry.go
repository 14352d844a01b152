package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/airctrl/airctrl/internal/client"
)

const (
	appName    = "airctrl"
	configFile = "config.yaml"

	// registryVersion is the current config file format version
	registryVersion = 1
)

// Registry is the on-disk device registry.
type Registry struct {
	Version int                `yaml:"version"`
	Default string             `yaml:"default,omitempty"` // name of the default device
	Devices map[string]*Device `yaml:"devices,omitempty"` // keyed by user-chosen name
}

// Device is a remembered purifier.
type Device struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port,omitempty"` // 0 means the protocol default
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		Version: registryVersion,
		Devices: make(map[string]*Device),
	}
}

// GetConfigDir returns the OS-appropriate configuration directory.
//   - Linux: $XDG_CONFIG_HOME/airctrl or $HOME/.config/airctrl
//   - macOS: $HOME/.config/airctrl
//   - Windows: %LOCALAPPDATA%\airctrl
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			return filepath.Join(userProfile, "AppData", "Local", appName), nil
		}
		return filepath.Join(localAppData, appName), nil

	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// GetConfigPath returns the full path to the registry file.
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the registry from disk. A missing file yields an empty
// registry, not an error.
func Load() (*Registry, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return loadFrom(path)
}

func loadFrom(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewRegistry(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if reg.Version != registryVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", reg.Version, registryVersion)
	}
	if reg.Devices == nil {
		reg.Devices = make(map[string]*Device)
	}
	return &reg, nil
}

// Save writes the registry to disk atomically (temp file + rename).
func (r *Registry) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return r.saveTo(path)
}

func (r *Registry) saveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

// AddDevice remembers a device under name. The first device added
// becomes the default.
func (r *Registry) AddDevice(name, host string, port int) error {
	if name == "" {
		return fmt.Errorf("device name must not be empty")
	}
	if host == "" {
		return fmt.Errorf("device host must not be empty")
	}
	r.Devices[name] = &Device{Host: host, Port: port}
	if r.Default == "" {
		r.Default = name
	}
	return nil
}

// RemoveDevice forgets a device. Removing the default clears the
// default selection.
func (r *Registry) RemoveDevice(name string) error {
	if _, ok := r.Devices[name]; !ok {
		return fmt.Errorf("unknown device %q", name)
	}
	delete(r.Devices, name)
	if r.Default == name {
		r.Default = ""
	}
	return nil
}

// SetDefault marks a remembered device as the default.
func (r *Registry) SetDefault(name string) error {
	if _, ok := r.Devices[name]; !ok {
		return fmt.Errorf("unknown device %q", name)
	}
	r.Default = name
	return nil
}

// Lookup resolves a device by name, falling back to the default when
// name is empty. The returned port is never zero.
func (r *Registry) Lookup(name string) (*Device, error) {
	if name == "" {
		name = r.Default
	}
	if name == "" {
		return nil, fmt.Errorf("no device specified and no default configured")
	}
	dev, ok := r.Devices[name]
	if !ok {
		return nil, fmt.Errorf("unknown device %q", name)
	}
	resolved := *dev
	if resolved.Port == 0 {
		resolved.Port = client.DefaultPort
	}
	return &resolved, nil
}

// Names returns the remembered device names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Devices))
	for name := range r.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
