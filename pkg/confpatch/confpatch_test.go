package confpatch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/hostsync/hostsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minerEntry() types.Entry {
	return types.Entry{
		Alias:   "miner",
		Version: "2.0",
		Conf: &types.Conf{
			File:            "app.conf",
			APIKeyPattern:   "{{API_KEY}}",
			ClientIDPattern: "{{CLIENT_ID}}",
		},
	}
}

func writeConf(t *testing.T, dist string, entry types.Entry, version, content string) {
	t.Helper()
	path := FilePath(dist, entry, version, FolderConf, entry.Conf.File)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestPatch(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		apiKey   string
		clientID string
		expected string
	}{
		{
			name:     "both tokens",
			text:     "key={{API_KEY}}\nid={{CLIENT_ID}}\n",
			apiKey:   "{{API_KEY}}",
			clientID: "{{CLIENT_ID}}",
			expected: "key=secret\nid=42\n",
		},
		{
			name:     "repeated tokens",
			text:     "{{API_KEY}}:{{API_KEY}}",
			apiKey:   "{{API_KEY}}",
			clientID: "{{CLIENT_ID}}",
			expected: "secret:secret",
		},
		{
			name:     "no tokens present",
			text:     "key=abc",
			apiKey:   "{{API_KEY}}",
			clientID: "{{CLIENT_ID}}",
			expected: "key=abc",
		},
		{
			name:     "regex metacharacters are literal",
			text:     "key=.*",
			apiKey:   ".*",
			clientID: "{{CLIENT_ID}}",
			expected: "key=secret",
		},
		{
			name:     "empty tokens are skipped",
			text:     "key=abc",
			apiKey:   "",
			clientID: "",
			expected: "key=abc",
		},
		{
			name:     "token colliding with content is replaced",
			text:     "port=KEY KEY",
			apiKey:   "KEY",
			clientID: "{{CLIENT_ID}}",
			expected: "port=secret secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Patch(tt.text, tt.apiKey, "secret", tt.clientID, "42")
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFilePath(t *testing.T) {
	got := FilePath("/opt/dist/5", minerEntry(), "2.0", FolderConf, "etc/app.conf")
	assert.Equal(t, filepath.Join("/opt/dist/5", "miner-2.0", "conf", "etc", "app.conf"), got)
}

func TestRead(t *testing.T) {
	dist := t.TempDir()
	entry := minerEntry()

	_, err := Read(dist, entry, "")
	assert.True(t, errdefs.IsNotFound(err))

	_, err = Read(dist, entry, "1.0")
	assert.True(t, errdefs.IsNotFound(err))

	writeConf(t, dist, entry, "1.0", "key=abc")
	text, err := Read(dist, entry, "1.0")
	require.NoError(t, err)
	assert.Equal(t, "key=abc", text)
}

func TestIsBad(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		write    bool
		noConf   bool
		expected bool
	}{
		{name: "api key token left behind", content: "key={{API_KEY}}", write: true, expected: true},
		{name: "client id token left behind", content: "id={{CLIENT_ID}}", write: true, expected: true},
		{name: "fully substituted", content: "key=abc\nid=42", write: true, expected: false},
		{name: "no previous file", write: false, expected: false},
		{name: "no conf spec", content: "key={{API_KEY}}", write: true, noConf: true, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dist := t.TempDir()
			entry := minerEntry()
			if tt.write {
				writeConf(t, dist, entry, "1.0", tt.content)
			}
			if tt.noConf {
				entry.Conf = nil
			}
			assert.Equal(t, tt.expected, IsBad(dist, entry, "1.0"))
		})
	}
}
