package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeFile writes content into dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// writeConfig writes an app-config YAML document with the given host and
// extra generic keys (already YAML-formatted, one per line).
func writeConfig(t *testing.T, dir, host string, extra ...string) string {
	t.Helper()
	doc := fmt.Sprintf("app:\n  title: demo\n  analytics:\n    generic:\n      host: %s\n", host)
	for _, line := range extra {
		doc += "      " + line + "\n"
	}
	return writeFile(t, dir, "app-config.yaml", doc)
}

// decodeResponse parses a JSON CLI response and re-decodes Data into out.
func decodeResponse(t *testing.T, stdout string, out any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	if out != nil && resp.Data != nil {
		raw, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out))
	}
	return resp
}
