package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tt-studio/console/internal/config"
)

func useTempConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, configDirName)
}

func TestSaveProfile_GeneratesBrowserID(t *testing.T) {
	dir := useTempConfig(t)

	p, err := SaveProfile(&Profile{Name: "Lab Box", APIURL: "http://lab:8000/"})
	require.NoError(t, err)
	assert.Equal(t, "lab-box", p.Name)
	assert.Equal(t, "http://lab:8000", p.APIURL)
	assert.NotEmpty(t, p.BrowserID)

	info, err := os.Stat(filepath.Join(dir, profilesDir, "lab-box.yaml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadProfile("lab-box")
	require.NoError(t, err)
	assert.Equal(t, p, loaded)
}

func TestSaveProfile_KeepsBrowserID(t *testing.T) {
	useTempConfig(t)

	p, err := SaveProfile(&Profile{Name: "a", APIURL: "http://a", BrowserID: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", p.BrowserID)
}

func TestSaveProfile_Invalid(t *testing.T) {
	useTempConfig(t)

	_, err := SaveProfile(&Profile{Name: "a"})
	require.Error(t, err)

	_, err = SaveProfile(&Profile{Name: "!!!", APIURL: "http://a"})
	require.Error(t, err)
}

func TestListProfiles(t *testing.T) {
	useTempConfig(t)

	profiles, err := ListProfiles()
	require.NoError(t, err)
	assert.Empty(t, profiles)

	for _, name := range []string{"zeta", "alpha"} {
		_, err := SaveProfile(&Profile{Name: name, APIURL: "http://" + name})
		require.NoError(t, err)
	}

	profiles, err = ListProfiles()
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "alpha", profiles[0].Name)
	assert.Equal(t, "zeta", profiles[1].Name)
}

func TestLoadProfile_NotFound(t *testing.T) {
	useTempConfig(t)

	_, err := LoadProfile("missing")
	require.ErrorIs(t, err, ErrProfileNotFound)
}

func TestActiveProfile(t *testing.T) {
	useTempConfig(t)

	active, err := GetActive()
	require.NoError(t, err)
	assert.Empty(t, active)

	require.ErrorIs(t, SetActive("lab"), ErrProfileNotFound)

	_, err = SaveProfile(&Profile{Name: "lab", APIURL: "http://lab"})
	require.NoError(t, err)
	require.NoError(t, SetActive("lab"))

	active, err = GetActive()
	require.NoError(t, err)
	assert.Equal(t, "lab", active)

	require.NoError(t, DeleteProfile("lab"))
	active, err = GetActive()
	require.NoError(t, err)
	assert.Empty(t, active)

	require.ErrorIs(t, DeleteProfile("lab"), ErrProfileNotFound)
}

func TestResolve(t *testing.T) {
	useTempConfig(t)
	off := false
	_, err := SaveProfile(&Profile{Name: "lab", APIURL: "http://lab:8000", BrowserID: "b-1", PreferSSE: &off})
	require.NoError(t, err)
	require.NoError(t, SetActive("lab"))

	cfg := &config.Config{APIURL: "http://localhost:8000", PreferSSE: true}
	p, err := Resolve(cfg, "")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "lab", cfg.ProfileName)
	assert.Equal(t, "http://lab:8000", cfg.APIURL)
	assert.Equal(t, "b-1", cfg.BrowserID)
	assert.False(t, cfg.PreferSSE)
}

func TestResolve_EnvWins(t *testing.T) {
	useTempConfig(t)
	t.Setenv("STUDIO_API_URL", "http://env:9000")
	_, err := SaveProfile(&Profile{Name: "lab", APIURL: "http://lab:8000"})
	require.NoError(t, err)

	cfg := &config.Config{APIURL: "http://env:9000"}
	_, err = Resolve(cfg, "lab")
	require.NoError(t, err)
	assert.Equal(t, "http://env:9000", cfg.APIURL)
}

func TestResolve_NoProfile(t *testing.T) {
	useTempConfig(t)

	cfg := &config.Config{APIURL: "http://localhost:8000"}
	p, err := Resolve(cfg, "")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "my-lab_1", sanitizeName("My Lab_1"))
	assert.Equal(t, "a-b", sanitizeName("--a.b--"))
	assert.Empty(t, sanitizeName("***"))
}

func TestStatePath(t *testing.T) {
	dir := useTempConfig(t)

	path, err := StatePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "studioctl.db"), path)
}
