package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "llama3.2:1b", cfg.LLM.Model)
	assert.Equal(t, 7, cfg.Search.MaxResults)
	assert.Equal(t, "google", cfg.Search.Engine)
	assert.Equal(t, 2, cfg.Index.TopK)
	assert.Equal(t, "pesquise", cfg.Chat.SearchKeyword)
	assert.Equal(t, "stockwise", cfg.Chat.ContextKeyword)
	assert.True(t, cfg.Chat.DocumentContext)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SERPAPIKEY", "serp-123")
	t.Setenv("SUPABASE_URL", "https://x.supabase.co")
	t.Setenv("SUPABASE_KEY", "anon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "serp-123", cfg.Search.SerpAPIKey)
	assert.Equal(t, "https://x.supabase.co", cfg.Storage.SupabaseURL)
	assert.Equal(t, "supabase", cfg.Storage.Driver)
}

func TestLoad_PrefixedEnvironmentWins(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STOCKWIZARD_SERVER_PORT", "7070")
	t.Setenv("STOCKWIZARD_LLM_MODEL", "qwen2.5:3b")
	t.Setenv("STOCKWIZARD_CHAT_DOCUMENTCONTEXT", "false")
	t.Setenv("STOCKWIZARD_STORAGE_DRIVER", "sqlite")
	t.Setenv("SUPABASE_URL", "https://x.supabase.co")
	t.Setenv("SUPABASE_KEY", "anon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "qwen2.5:3b", cfg.LLM.Model)
	assert.False(t, cfg.Chat.DocumentContext)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
}
