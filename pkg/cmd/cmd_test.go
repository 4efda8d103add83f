package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/hostsync/hostsync/pkg/versions"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withConfigFlag mirrors the persistent --config flag set up by the root command.
func withConfigFlag(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().String("config", "", "")
	return cmd
}

func TestNewCheckCmdValidation(t *testing.T) {
	tests := []struct {
		name                  string
		args                  []string
		expectedErrorContains []string
	}{
		{
			name:                  "FAIL: No flags provided",
			args:                  []string{},
			expectedErrorContains: []string{"manifest-url is required", "at least one of identifiers is required"},
		},
		{
			name:                  "FAIL: Relative manifest url",
			args:                  []string{"--manifest-url", "manifest.json", "--identifiers", "1"},
			expectedErrorContains: []string{"is not an absolute URL"},
		},
		{
			name:                  "FAIL: Identifier with path separator",
			args:                  []string{"--manifest-url", "http://localhost/manifest", "--identifiers", "../1"},
			expectedErrorContains: []string{"must be a plain directory name"},
		},
		{
			name:                  "FAIL: Unknown stop signal",
			args:                  []string{"--manifest-url", "http://localhost/manifest", "--identifiers", "1", "--stop-signal", "SIGNOPE"},
			expectedErrorContains: []string{"SIGNOPE"},
		},
		{
			name:                  "FAIL: Missing config file",
			args:                  []string{"--config", filepath.Join(t.TempDir(), "missing.yaml")},
			expectedErrorContains: []string{"failed to read config file"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := withConfigFlag(NewCheckCmd())
			cmd.SetArgs(tt.args)
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true

			err := cmd.Execute()
			require.Error(t, err)
			for _, want := range tt.expectedErrorContains {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestCheckCmd(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		expectedError string
	}{
		{
			name:   "PASS: Nothing applies to this host",
			status: http.StatusOK,
			body:   `[{"alias":"miner","version":"1.0","platforms":["plan9/386"],"github":{"zipUrl":"http://localhost/miner.zip"}}]`,
		},
		{
			name:   "PASS: Empty manifest",
			status: http.StatusOK,
			body:   `[]`,
		},
		{
			name:          "FAIL: Manifest unavailable",
			status:        http.StatusServiceUnavailable,
			body:          "down",
			expectedError: "no changes applied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			dist := t.TempDir()
			cmd := withConfigFlag(NewCheckCmd())
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			cmd.SetArgs([]string{"--manifest-url", srv.URL, "--identifiers", "1", "--dist", dist})

			err := cmd.Execute()
			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestVersionsCmd(t *testing.T) {
	dist := t.TempDir()
	store := versions.NewFileStore(filepath.Join(dist, "versions.yaml"))
	require.NoError(t, store.SaveVersions(versions.New(map[string]map[string]string{
		"5": {"miner": "2.0", "proxy": "1.1"},
		"1": {"miner": "1.9"},
	})))

	var out bytes.Buffer
	cmd := withConfigFlag(NewVersionsCmd())
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--dist", dist})
	require.NoError(t, cmd.Execute())

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"IDENTIFIER", "ALIAS", "VERSION"}, fields(lines[0]))
	assert.Equal(t, []string{"1", "miner", "1.9"}, fields(lines[1]))
	assert.Equal(t, []string{"5", "miner", "2.0"}, fields(lines[2]))
	assert.Equal(t, []string{"5", "proxy", "1.1"}, fields(lines[3]))
}

func TestVersionsCmdNoStateFile(t *testing.T) {
	var out bytes.Buffer
	cmd := withConfigFlag(NewVersionsCmd())
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--state-file", filepath.Join(t.TempDir(), "none.yaml")})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "IDENTIFIER  ALIAS  VERSION\n", out.String())
}

func fields(line []byte) []string {
	var out []string
	for _, f := range bytes.Fields(line) {
		out = append(out, string(f))
	}
	return out
}
