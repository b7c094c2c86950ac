// Package config provides configuration management for the input routing service.
package config

import (
	"encoding/json"
	"log"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

const defaultReconnectDelay = 5 * time.Second

// Config represents the service configuration
type Config struct {
	// Service is the upstream capture service to pull events from
	Service ServiceConfig `json:"service"`

	// API configures the local control-plane HTTP server
	API APIConfig `json:"api"`

	// Mappings binds device IDs to user IDs
	Mappings map[string]string `json:"mappings"`

	// Users holds per-user launch defaults keyed by user ID
	Users map[string]UserConfig `json:"users"`

	// EditorPaths maps editor names to executable paths
	EditorPaths map[string]string `json:"editor_paths"`

	// Settings contains routing tunables
	Settings Settings `json:"settings"`
}

// ServiceConfig locates the upstream raw input service
type ServiceConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns the upstream address in "host:port" form
func (s ServiceConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// APIConfig contains the HTTP API settings
type APIConfig struct {
	// Port is the local port for the API server (default: 8377)
	Port int `json:"port"`

	// Token is an optional authentication token for API requests
	Token string `json:"token,omitempty"`
}

// UserConfig holds launch defaults for one user
type UserConfig struct {
	// ProjectDir is opened by the editor at launch
	ProjectDir string `json:"project_dir"`

	// Editor names an entry in EditorPaths (default: "cursor")
	Editor string `json:"editor,omitempty"`
}

// Settings contains routing tunables
type Settings struct {
	// ReconnectDelayS is the wait between upstream reconnect attempts
	ReconnectDelayS int `json:"reconnect_delay_s"`

	// FocusDelayMS is accepted and persisted but currently unread;
	// the router never changes window focus
	FocusDelayMS int `json:"focus_delay_ms"`
}

// ReconnectDelay returns the reconnect wait, with a floor at the default
func (s Settings) ReconnectDelay() time.Duration {
	if s.ReconnectDelayS <= 0 {
		return defaultReconnectDelay
	}
	return time.Duration(s.ReconnectDelayS) * time.Second
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Host: "127.0.0.1",
			Port: 9999,
		},
		API: APIConfig{
			Port: 8377,
		},
		Mappings: make(map[string]string),
		Users:    make(map[string]UserConfig),
		EditorPaths: map[string]string{
			"cursor": `C:\Users\%USERNAME%\AppData\Local\Programs\cursor\Cursor.exe`,
			"code":   `C:\Program Files\Microsoft VS Code\Code.exe`,
			"kiro":   `C:\Users\%USERNAME%\AppData\Local\Programs\Kiro\Kiro.exe`,
		},
		Settings: Settings{
			ReconnectDelayS: 5,
			FocusDelayMS:    50,
		},
	}
}

// ExpandUser replaces %USERNAME% in a path with the current user
func ExpandUser(path string) string {
	if !strings.Contains(path, "%USERNAME%") {
		return path
	}
	user := os.Getenv("USERNAME")
	if user == "" {
		user = os.Getenv("USER")
	}
	return strings.ReplaceAll(path, "%USERNAME%", user)
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
}

// NewManager creates a new configuration manager at the default path
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	return &Manager{
		configPath: configPath,
		config:     DefaultConfig(),
	}, nil
}

// NewManagerAt creates a manager bound to an explicit config file
func NewManagerAt(path string) *Manager {
	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
	}
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "inputrouter")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "inputrouter")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", "inputrouter")
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Load reads the configuration from disk
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		// No config file, use defaults
		return nil
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, m.config); err != nil {
		return err
	}
	if m.onChanged != nil {
		m.onChanged()
	}
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}

	log.Printf("Config: Saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Set updates the configuration
func (m *Manager) Set(config *Config) {
	m.mu.Lock()
	m.config = config
	m.mu.Unlock()
	if m.onChanged != nil {
		m.onChanged()
	}
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}

// Path returns the config file location
func (m *Manager) Path() string {
	return m.configPath
}

// SetMapping records a device mapping
func (m *Manager) SetMapping(deviceID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config.Mappings == nil {
		m.config.Mappings = make(map[string]string)
	}
	m.config.Mappings[deviceID] = userID
}

// RemoveMapping drops a device mapping
func (m *Manager) RemoveMapping(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.config.Mappings, deviceID)
}
