package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/mcoot/tablebank/internal/model"
)

const (
	defaultServerURL = "http://localhost:8080"
	profileFileMode  = 0o600
	profileDirMode   = 0o700
	tempFilePattern  = ".profile-*.toml.tmp"
)

// Config holds CLI configuration
type Config struct {
	ServerURL   string
	ProfilePath string
	Output      string
	Verbose     bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:   os.Getenv("BANKCTL_SERVER"),
		ProfilePath: getEnvOrDefault("BANKCTL_PROFILE", defaultProfilePath()),
		Output:      "text",
		Verbose:     false,
	}
}

// Profile is the persisted CLI state: the server to talk to and the last seat held
type Profile struct {
	Server string `toml:"server,omitempty"`
	Seat   *Seat  `toml:"seat,omitempty"`
}

// Seat identifies a player's place in a session and the token to reclaim it
type Seat struct {
	Code     model.SessionCode `toml:"code"`
	PlayerID model.PlayerID    `toml:"player_id"`
	Token    string            `toml:"token"`
}

// LoadProfile reads a profile. A missing file is an empty profile.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Profile{}, nil
		}
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var p Profile
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

// SaveProfile writes a profile by replacing the file atomically
func SaveProfile(path string, p *Profile) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, profileDirMode); err != nil {
		return fmt.Errorf("create profile directory: %w", err)
	}

	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp profile: %w", err)
	}
	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp profile: %w", err)
	}
	if err := tempFile.Chmod(profileFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp profile: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp profile: %w", err)
	}
	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace profile: %w", err)
	}

	cleanup = false
	return nil
}

// resolveServer picks the server URL: flag or env, then profile, then default
func (c *Config) resolveServer(p *Profile) string {
	if c.ServerURL != "" {
		return c.ServerURL
	}
	if p != nil && p.Server != "" {
		return p.Server
	}
	return defaultServerURL
}

func defaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".bankctl", "profile.toml")
	}
	return filepath.Join(home, ".bankctl", "profile.toml")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
