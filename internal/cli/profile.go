package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/tt-studio/console/internal/config"
)

const (
	configDirName = "ttstudio"
	profilesDir   = "profiles"
	stateFile     = "state.yaml"
	databaseFile  = "studioctl.db"
)

// ErrProfileNotFound is returned when a named profile has no file on disk.
var ErrProfileNotFound = errors.New("profile not found")

// Profile is a saved backend connection. BrowserID is generated on first
// save and stays stable so the backend keeps associating this client with
// the same chat and deployment state.
type Profile struct {
	Name      string `yaml:"name"`
	APIURL    string `yaml:"api_url"`
	BrowserID string `yaml:"browser_id"`
	PreferSSE *bool  `yaml:"prefer_sse,omitempty"`
	CACert    string `yaml:"ca_cert,omitempty"`
}

// State holds the active profile selection.
type State struct {
	ActiveProfile string `yaml:"active_profile"`
}

// configDir returns the base config directory (~/.config/ttstudio/).
func configDir() (string, error) {
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home directory: %w", err)
		}
		xdgConfig = filepath.Join(home, ".config")
	}

	return filepath.Join(xdgConfig, configDirName), nil
}

func ensureConfigDir() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Join(dir, profilesDir), 0700); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	return dir, nil
}

// StatePath returns the default location of the CLI's local database.
func StatePath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, databaseFile), nil
}

// SaveProfile writes p to the profile store, creating or replacing it.
// The name is sanitized and a browser id is generated when missing.
func SaveProfile(p *Profile) (*Profile, error) {
	if p.APIURL == "" {
		return nil, fmt.Errorf("profile api url is required")
	}
	name := sanitizeName(p.Name)
	if name == "" {
		return nil, fmt.Errorf("invalid profile name %q", p.Name)
	}

	dir, err := ensureConfigDir()
	if err != nil {
		return nil, err
	}

	saved := *p
	saved.Name = name
	saved.APIURL = strings.TrimRight(saved.APIURL, "/")
	if saved.BrowserID == "" {
		saved.BrowserID = uuid.NewString()
	}

	data, err := yaml.Marshal(&saved)
	if err != nil {
		return nil, fmt.Errorf("marshal profile: %w", err)
	}
	if err := os.WriteFile(profilePath(dir, name), data, 0600); err != nil {
		return nil, fmt.Errorf("write profile: %w", err)
	}

	return &saved, nil
}

// ListProfiles returns all saved profiles ordered by name.
func ListProfiles() ([]Profile, error) {
	dir, err := configDir()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(dir, profilesDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read profiles directory: %w", err)
	}

	var profiles []Profile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		p, err := readProfile(filepath.Join(dir, profilesDir, entry.Name()))
		if err != nil {
			continue
		}
		profiles = append(profiles, *p)
	}

	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

// LoadProfile loads a profile by name.
func LoadProfile(name string) (*Profile, error) {
	dir, err := configDir()
	if err != nil {
		return nil, err
	}

	p, err := readProfile(profilePath(dir, sanitizeName(name)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
		}
		return nil, err
	}
	return p, nil
}

// DeleteProfile removes a saved profile and clears it as the active one.
func DeleteProfile(name string) error {
	dir, err := configDir()
	if err != nil {
		return err
	}

	name = sanitizeName(name)
	if err := os.Remove(profilePath(dir, name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
		}
		return fmt.Errorf("remove profile: %w", err)
	}

	state, _ := loadState()
	if state != nil && state.ActiveProfile == name {
		state.ActiveProfile = ""
		return saveState(state)
	}

	return nil
}

// SetActive sets the active profile.
func SetActive(name string) error {
	p, err := LoadProfile(name)
	if err != nil {
		return err
	}
	return saveState(&State{ActiveProfile: p.Name})
}

// GetActive returns the currently active profile name, or "" when none is set.
func GetActive() (string, error) {
	state, err := loadState()
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return state.ActiveProfile, nil
}

// Resolve overlays the selected profile onto cfg. An explicit name wins over
// the active profile. Environment variables that are set keep precedence
// over profile values. When no profile applies cfg is returned unchanged.
func Resolve(cfg *config.Config, name string) (*Profile, error) {
	if name == "" {
		active, err := GetActive()
		if err != nil {
			return nil, err
		}
		name = active
	}
	if name == "" {
		return nil, nil
	}

	p, err := LoadProfile(name)
	if err != nil {
		return nil, err
	}

	cfg.ProfileName = p.Name
	if _, ok := os.LookupEnv("STUDIO_API_URL"); !ok {
		cfg.APIURL = p.APIURL
	}
	if _, ok := os.LookupEnv("STUDIO_BROWSER_ID"); !ok {
		cfg.BrowserID = p.BrowserID
	}
	if _, ok := os.LookupEnv("STUDIO_PREFER_SSE"); !ok && p.PreferSSE != nil {
		cfg.PreferSSE = *p.PreferSSE
	}
	if _, ok := os.LookupEnv("STUDIO_TLS_CA_CERT"); !ok && p.CACert != "" {
		cfg.TLSCACert = p.CACert
	}

	return p, nil
}

func profilePath(dir, name string) string {
	return filepath.Join(dir, profilesDir, name+".yaml")
}

func readProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", filepath.Base(path), err)
	}
	return &p, nil
}

func loadState() (*State, error) {
	dir, err := configDir()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, stateFile))
	if err != nil {
		return nil, err
	}

	var state State
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}

	return &state, nil
}

func saveState(state *State) error {
	dir, err := ensureConfigDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(state)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, stateFile), data, 0600)
}

func sanitizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
	return strings.Trim(name, "-")
}
