package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qtoken/internal/store"
)

var shopSchemaDir = filepath.Join("..", "cueschema", "testdata", "shop")

// testOptions points the commands at the CUE shop schema and at a config
// path that does not exist.
func testOptions(t *testing.T, format string) *RootOptions {
	t.Helper()
	return &RootOptions{
		Format:     format,
		ConfigPath: filepath.Join(t.TempDir(), "qtoken.yaml"),
		SchemaDir:  shopSchemaDir,
	}
}

// withConfig writes a configuration file and points opts at it.
func withConfig(t *testing.T, opts *RootOptions, yaml string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qtoken.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	opts.ConfigPath = path
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// decode unmarshals a JSON response, decoding Data into data.
func decode(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), "output: %s", out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}

// createShopDB creates a SQLite database with customers and orders and a
// visibility rule on customers.
func createShopDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	for _, stmt := range []string{
		`CREATE TABLE customers (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			active BOOLEAN NOT NULL
		)`,
		`CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			number TEXT NOT NULL,
			customer_id INTEGER NOT NULL REFERENCES customers(id),
			total DECIMAL(12, 2)
		)`,
	} {
		require.NoError(t, s.Exec(ctx, stmt))
	}
	require.NoError(t, s.WriteVisibility(ctx, "Customer", "self.Active"))
	require.NoError(t, s.WriteFormat(ctx, "Order.Total", "C2", "EUR"))
	return path
}
