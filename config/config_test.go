package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, payload string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))
	return path
}

func TestGetYaml(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9090"
data_dir: /tmp/paperdesk
market: in
quote_api_url: http://quotes.local
feed_url: ws://quotes.local/feed
refresh_interval: 10s
starting_balance: "250000"
`)

	cfg, err := getYaml(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/paperdesk", cfg.DataDir)
	assert.Equal(t, "in", cfg.Market)
	assert.Equal(t, "http://quotes.local", cfg.QuoteAPIURL)
	assert.Equal(t, "ws://quotes.local/feed", cfg.FeedURL)
	assert.Equal(t, 10*time.Second, cfg.RefreshInterval)
	assert.Equal(t, "250000", cfg.StartingBalance.String())
}

func TestGetYamlDefaults(t *testing.T) {
	cfg, err := getYaml(writeConfig(t, `market: us`))
	require.NoError(t, err)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultDataDir, cfg.DataDir)
	assert.Equal(t, DefaultQuoteAPIURL, cfg.QuoteAPIURL)
	assert.Equal(t, DefaultRefreshInterval, cfg.RefreshInterval)
	assert.True(t, cfg.StartingBalance.IsZero())
	assert.Empty(t, cfg.FeedURL)
}

func TestGetYamlRejectsBadValues(t *testing.T) {
	_, err := getYaml(writeConfig(t, `market: mars`))
	assert.Error(t, err)

	_, err = getYaml(writeConfig(t, "starting_balance: \"lots\""))
	assert.Error(t, err)

	_, err = getYaml(writeConfig(t, "starting_balance: \"-5\""))
	assert.Error(t, err)

	_, err = getYaml(writeConfig(t, "{{"))
	assert.Error(t, err)

	_, err = getYaml(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
