package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "CHAT_PROVIDER", "GEMINI_API_KEY", "GEMINI_BASE_URL", "ARK_API_KEY", "ARK_ACCESS_KEY",
		"ARK_SECRET_KEY", "Model", "CHAT_STREAM", "CHAT_SYSTEM_PROMPT", "CHAT_DEFAULT_MODEL",
		"CHAT_DEFAULT_TEMPERATURE", "CHAT_GREETING", "CHAT_APOLOGY", "CHAT_EXPORT_PREFIX",
		"CHAT_SHOW_DIAGNOSTICS", "CHAT_REQUEST_LOG", "CHAT_SETTINGS_FILE", "LOG_FILE", "OTEL_ENABLED",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadMissingGeminiKeyIsStartupError(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)

	var startupErr *StartupConfigError
	require.True(t, errors.As(err, &startupErr))
	assert.Equal(t, "GEMINI_API_KEY", startupErr.Key)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, ProviderGemini, cfg.AI.Provider)
	assert.True(t, cfg.AI.StreamResponse)
	assert.True(t, cfg.AI.PerRequestModel())
	assert.Equal(t, DefaultGreeting, cfg.Chat.Greeting)
	assert.Equal(t, DefaultApology, cfg.Chat.Apology)
	assert.Equal(t, "gemini_chat", cfg.Chat.ExportPrefix)
	assert.True(t, cfg.Chat.ShowDiagnostics)

	gen := cfg.Chat.DefaultGenerationConfig()
	assert.Equal(t, DefaultModel, gen.Model)
	assert.InDelta(t, 0.7, gen.Temperature, 1e-9)
	assert.Equal(t, 40, gen.TopK)
}

func TestDefaultGreetingText(t *testing.T) {
	assert.Equal(t,
		"Salam! Main **Gemini Pro Advanced Assistant** hun.\n"+
			"University project ke liye banaya gaya hun.\n\n"+
			"Mujhse coding, assignment, research, ya koi bhi sawal pooch sakte ho!\n"+
			"English aur Urdu dono mein baat kar sakta hun 🤖",
		DefaultGreeting)
}

func TestLoadArkRequiresCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHAT_PROVIDER", "ark")
	t.Setenv("GEMINI_API_KEY", "unused")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ARK_API_KEY")

	t.Setenv("ARK_API_KEY", "ark-key")
	t.Setenv("Model", "ep-123")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ep-123", cfg.AI.Model)
	assert.False(t, cfg.AI.PerRequestModel())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "secret")

	t.Setenv("CHAT_DEFAULT_TEMPERATURE", "1.4")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("CHAT_DEFAULT_TEMPERATURE", "")
	t.Setenv("CHAT_STREAM", "maybe")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("CHAT_STREAM", "")
	t.Setenv("CHAT_PROVIDER", "openai")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadSettingsFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "secret")

	path := filepath.Join(t.TempDir(), "chat.toml")
	content := `
[chat]
greeting = "Hello from file"
apology = "Sorry from file"
export_prefix = "transcript"
show_diagnostics = false

[defaults]
model = "gemini-2.5-pro"
temperature = 0.3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CHAT_SETTINGS_FILE", path)
	t.Setenv("CHAT_APOLOGY", "Sorry from env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Hello from file", cfg.Chat.Greeting)
	assert.Equal(t, "Sorry from env", cfg.Chat.Apology)
	assert.Equal(t, "transcript", cfg.Chat.ExportPrefix)
	assert.False(t, cfg.Chat.ShowDiagnostics)
	assert.Equal(t, "gemini-2.5-pro", cfg.Chat.DefaultModel)
	assert.InDelta(t, 0.3, cfg.Chat.DefaultTemperature, 1e-9)
}

func TestLoadSettingsFileUnknownKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "secret")

	path := filepath.Join(t.TempDir(), "chat.toml")
	require.NoError(t, os.WriteFile(path, []byte("[chat]\ncolour = \"red\"\n"), 0o644))
	t.Setenv("CHAT_SETTINGS_FILE", path)

	_, err := Load()
	var startupErr *StartupConfigError
	require.True(t, errors.As(err, &startupErr))
	assert.Equal(t, "CHAT_SETTINGS_FILE", startupErr.Key)
}

func TestLoadServerConfigPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "127.0.0.1:9000")
	cfg, err := loadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)

	t.Setenv("PORT", "80 80")
	_, err = loadServerConfig()
	assert.Error(t, err)
}
