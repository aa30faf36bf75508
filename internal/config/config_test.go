package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `{
	"port": 8080,
	"jwt_secret": "secret",
	"database": {"host": "localhost", "port": 5432, "user": "u", "password": "p", "db_name": "d"},
	"blob_store": {"type": "local", "dir": "/tmp/blobs"},
	"ai": {
		"embedding": {"provider": "openai", "model": "text-embedding-3-small", "dimension": 1024, "args": {"api_key": "k"}},
		"generation": {"openai": {"args": {"api_key": "k"}}}
	}
}`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, 5, cfg.Retrieval.TopK)
	require.Equal(t, 30, cfg.ChatTimeoutS)
	require.Equal(t, 4, cfg.Ingest.Workers)
	require.Equal(t, 2000, cfg.Ingest.MaxChunkChars)
	require.Equal(t, 3, cfg.Ingest.DownloadRetries)
	require.Equal(t, "*/5 * * * *", cfg.Ingest.SweepSpec)
	require.Equal(t, 900, cfg.Ingest.StaleAfterS)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing port", `{"jwt_secret": "s", "database": {"host": "h"}}`},
		{"missing jwt secret", `{"port": 8080, "database": {"host": "h"}}`},
		{"missing database", `{"port": 8080, "jwt_secret": "s"}`},
		{"local store without dir", `{"port": 8080, "jwt_secret": "s", "database": {"host": "h"}, "blob_store": {"type": "local"}}`},
		{"s3 store without bucket", `{"port": 8080, "jwt_secret": "s", "database": {"host": "h"}, "blob_store": {"type": "s3", "s3": {"region": "r"}}}`},
		{"bad store type", `{"port": 8080, "jwt_secret": "s", "database": {"host": "h"}, "blob_store": {"type": "ftp"}}`},
		{"missing embedding", `{"port": 8080, "jwt_secret": "s", "database": {"host": "h"}, "blob_store": {"type": "local", "dir": "/tmp"}}`},
		{"zero dimension", `{"port": 8080, "jwt_secret": "s", "database": {"host": "h"}, "blob_store": {"type": "local", "dir": "/tmp"}, "ai": {"embedding": {"provider": "openai", "model": "m"}}}`},
		{"not json", `port = 8080`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
		})
	}
}
