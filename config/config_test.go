package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/caarlos0/env/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNothingSet(t *testing.T) {
	cfg, err := load("", env.Options{Environment: map[string]string{}})
	require.NoError(t, err)

	assert.Equal(t, DefaultAddr, cfg.ServerAddr)
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "gpt-4.1", cfg.LLM.TextModel)
	assert.Equal(t, "gpt-image-1", cfg.LLM.ImageModel)
	assert.Equal(t, "1024x1024", cfg.LLM.ImageSize)
	assert.Equal(t, "low", cfg.LLM.ImageQuality)
	assert.Equal(t, 0.9, cfg.LLM.Temperature)
	assert.EqualValues(t, 500, cfg.LLM.MaxTokens)
	assert.Equal(t, DefaultMiroBaseURL, cfg.Board.BaseURL)
	assert.Equal(t, CacheTTL, cfg.CacheTTL)
	assert.Equal(t, 3, cfg.PublishAttempts)
	assert.Equal(t, PublishRetryDelay, cfg.PublishRetryDelay)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "nope.json"), env.Options{Environment: map[string]string{}})
	assert.NoError(t, err)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"server_addr": ":9000",
		"llm": {"provider": "openai", "api_key": "file-key", "text_model": "gpt-4o"},
		"board": {"token": "file-token", "base_url": "https://board.example/", "default_board_id": "b-file"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := load(path, env.Options{Environment: map[string]string{
		"OPENAI_API_KEY": "env-key",
		"MIRO_BOARD_ID":  "b-env",
		"PORT":           "7000",
	}})
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o", cfg.LLM.TextModel, "file value kept when env is silent")
	assert.Equal(t, "gpt-image-1", cfg.LLM.ImageModel, "default kept when file and env are silent")
	assert.Equal(t, "file-token", cfg.Board.Token)
	assert.Equal(t, "b-env", cfg.Board.DefaultBoardID)
	assert.Equal(t, "https://board.example", cfg.Board.BaseURL)
	assert.Equal(t, ":7000", cfg.ServerAddr)
}

func TestLoadRejectsBrokenJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := load(path, env.Options{Environment: map[string]string{}})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate(), "openai without key")

	cfg.LLM.APIKey = "k"
	assert.NoError(t, cfg.Validate())

	cfg.LLM.Provider = ProviderMock
	cfg.LLM.APIKey = ""
	assert.NoError(t, cfg.Validate())

	cfg.LLM.Provider = "gemini"
	assert.ErrorContains(t, cfg.Validate(), "not supported")
}

func TestLoadReadsDotenvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("OPENAI_IMAGE_SIZE=1536x1024\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("OPENAI_IMAGE_SIZE") })

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "1536x1024", cfg.LLM.ImageSize)
}
