package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hostsync/hostsync/pkg/types"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadFromFlags(t *testing.T) {
	flags := newFlags(t,
		"--manifest-url", "https://example.com/api/manifest",
		"--identifiers", "1,5,5",
		"--dist", "/opt/hostsync",
		"--client-ids", "5=abc",
		"--interval", "30s",
	)
	v, err := New(flags, "")
	require.NoError(t, err)

	opts, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/api/manifest", opts.ManifestURL)
	assert.Equal(t, []string{"1", "5"}, opts.Identifiers)
	assert.Equal(t, "/opt/hostsync", opts.Dist)
	assert.Equal(t, filepath.Join("/opt/hostsync", "versions.yaml"), opts.StateFile)
	assert.Equal(t, map[string]string{"5": "abc"}, opts.ClientIDs)
	assert.Equal(t, 30*time.Second, opts.Interval)
	assert.Equal(t, "SIGTERM", opts.StopSignal)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HOSTSYNC_MANIFEST_URL", "https://example.com/api/manifest")
	t.Setenv("HOSTSYNC_IDENTIFIERS", "2,3")
	t.Setenv("HOSTSYNC_API_KEY", "secret")

	v, err := New(newFlags(t), "")
	require.NoError(t, err)

	opts, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, opts.Identifiers)
	assert.Equal(t, "secret", opts.APIKey)
	assert.Equal(t, DefaultInterval, opts.Interval)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
manifest-url: https://example.com/api/manifest
identifiers: ["5"]
api-key: secret
client-ids:
  "5": client-five
`), 0o600))

	v, err := New(newFlags(t), path)
	require.NoError(t, err)

	opts, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, opts.Identifiers)
	assert.Equal(t, "client-five", ClientIDFunc(opts)("5"))
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
manifest-url: https://file.example.com/manifest
identifiers: ["5"]
api-key: from-file
platform: linux/arm64
`), 0o600))
	t.Setenv("HOSTSYNC_API_KEY", "from-env")
	t.Setenv("HOSTSYNC_PLATFORM", "linux/amd64")

	v, err := New(newFlags(t, "--platform", "windows/amd64"), path)
	require.NoError(t, err)

	opts, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com/manifest", opts.ManifestURL)
	assert.Equal(t, "from-env", opts.APIKey, "the environment overrides the config file")
	assert.Equal(t, "windows/amd64", opts.Platform, "flags override the environment")
}

func TestNewMissingConfigFile(t *testing.T) {
	_, err := New(newFlags(t), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		opts        types.Options
		expectError bool
	}{
		{name: "valid", opts: types.Options{ManifestURL: "http://x/api/manifest", Identifiers: []string{"1"}}},
		{name: "missing url", opts: types.Options{Identifiers: []string{"1"}}, expectError: true},
		{name: "relative url", opts: types.Options{ManifestURL: "/api/manifest", Identifiers: []string{"1"}}, expectError: true},
		{name: "no identifiers", opts: types.Options{ManifestURL: "http://x/api/manifest"}, expectError: true},
		{name: "path identifier", opts: types.Options{ManifestURL: "http://x", Identifiers: []string{"../etc"}}, expectError: true},
		{name: "bad namespace", opts: types.Options{ManifestURL: "http://x", Identifiers: []string{"1"}, ClientIDNamespace: "nope"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.opts)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClientIDFunc(t *testing.T) {
	ns := uuid.New().String()
	opts := &types.Options{ClientIDs: map[string]string{"5": "abc"}, ClientIDNamespace: ns}
	f := ClientIDFunc(opts)

	assert.Equal(t, "abc", f("5"))
	derived := f("7")
	assert.Equal(t, derived, f("7"), "derived IDs are stable")
	assert.NotEqual(t, derived, f("8"))
	_, err := uuid.Parse(derived)
	assert.NoError(t, err)
}
