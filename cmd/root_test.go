package cmd

import (
	"fmt"
	"github.com/bwmarrin/discordgo"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/staffapply/staffapply/staffapply"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func assertLogLevel(t testing.TB, expected slog.Level, v any) {
	t.Helper()

	lvl, ok := v.(*slog.LevelVar)
	require.Truef(t, ok, "could not convert %#v (%T) to *slog.LevelVar", v, v)
	assert.Equal(t, expected, lvl.Level())
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	// Save the original environment
	originalEnv := os.Environ()
	t.Cleanup(
		func() {
			os.Clearenv()
			for _, envVar := range originalEnv {
				parts := strings.SplitN(envVar, "=", 2)
				os.Setenv(parts[0], parts[1])
			}
		},
	)

	// Clear the environment before the test
	os.Clearenv()

	tmpdir := t.TempDir()

	// Set up the test environment file
	envFile := filepath.Join(tmpdir, "test.env")

	envContent := `
# General/database config

STAFFAPPLY_DATABASE=/home/foo/staffapply.sqlite3
STAFFAPPLY_DATABASE_TYPE=sqlite
STAFFAPPLY_DATABASE_LOG_LEVEL=INFO
STAFFAPPLY_DATABASE_SLOW_THRESHOLD=200ms
STAFFAPPLY_LOG_LEVEL=INFO
STAFFAPPLY_STARTUP_TIMEOUT=30s
STAFFAPPLY_SHUTDOWN_TIMEOUT=60s

# Application workflow config

STAFFAPPLY_APPLICATION_TITLE=Staff Application
STAFFAPPLY_APPLICATION_EMBED_COLOR=#ff8800
STAFFAPPLY_APPLICATION_COOLDOWN=12h

# Discord bot config

STAFFAPPLY_DISCORD_TOKEN=your-discord-bot-token
STAFFAPPLY_DISCORD_APPLICATION_ID=your-discord-bot-app-id
STAFFAPPLY_DISCORD_GUILD_ID=
STAFFAPPLY_DISCORD_LOG_LEVEL=WARN
STAFFAPPLY_DISCORD_DISCORDGO_LOG_LEVEL=WARN
STAFFAPPLY_DISCORD_STARTUP_MESSAGE="I'm here!"
STAFFAPPLY_DISCORD_GATEWAY_INTENTS=1

# API server

STAFFAPPLY_API_LISTEN=127.0.0.1:5000
STAFFAPPLY_API_LOG_LEVEL=DEBUG
STAFFAPPLY_API_CORS_ALLOW_ORIGINS=https://127.0.0.1:5000 https://localhost:5000
STAFFAPPLY_API_CORS_ALLOW_METHODS=GET POST PUT PATCH DELETE OPTIONS HEAD
STAFFAPPLY_API_CORS_MAX_AGE=12h
STAFFAPPLY_API_READ_TIMEOUT=5s
STAFFAPPLY_API_READ_HEADER_TIMEOUT=5s
STAFFAPPLY_API_WRITE_TIMEOUT=10s
STAFFAPPLY_API_IDLE_TIMEOUT=30s
`

	err := os.WriteFile(envFile, []byte(envContent), 0644)
	assert.NoError(t, err)

	rootCmd.SetArgs([]string{fmt.Sprintf("--config=%s", envFile), "version"})
	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, "/home/foo/staffapply.sqlite3", cfg.Database)
	assert.Equal(t, "/home/foo/staffapply.sqlite3", viper.GetString("database"))
	assert.Equal(t, "sqlite", viper.GetString("database_type"))

	assertLogLevel(t, slog.LevelInfo, viper.Get("database_log_level"))

	assert.Equal(t, 200*time.Millisecond, viper.GetDuration("database_slow_threshold"))
	assertLogLevel(t, slog.LevelInfo, viper.Get("log_level"))
	assert.Equal(t, 30*time.Second, viper.GetDuration("startup_timeout"))
	assert.Equal(t, 60*time.Second, viper.GetDuration("shutdown_timeout"))

	assert.Equal(t, "Staff Application", viper.GetString("application.title"))
	assert.Equal(t, "#ff8800", viper.GetString("application.embed_color"))
	assert.Equal(t, "12h", viper.GetString("application.cooldown"))

	assert.Equal(t, "your-discord-bot-token", viper.GetString("discord.token"))
	assert.Equal(t, "your-discord-bot-app-id", viper.GetString("discord.application_id"))
	assert.Equal(t, "", viper.GetString("discord.guild_id"))

	assertLogLevel(t, slog.LevelWarn, viper.Get("discord.log_level"))
	assertLogLevel(t, slog.LevelWarn, viper.Get("discord.discordgo_log_level"))
	assert.Equal(t, "I'm here!", viper.GetString("discord.startup_message"))
	assert.Equal(t, 1, viper.GetInt("discord.gateway_intents"))

	assert.Equal(t, "127.0.0.1:5000", viper.GetString("api.listen"))
	assertLogLevel(t, slog.LevelDebug, viper.Get("api.log_level"))
	assert.Equal(t, slog.LevelDebug, cfg.API.LogLevel.Level())
	assert.Equal(
		t,
		[]string{"https://127.0.0.1:5000", "https://localhost:5000"},
		viper.GetStringSlice("api.cors.allow_origins"),
	)
	assert.Equal(
		t,
		[]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		viper.GetStringSlice("api.cors.allow_methods"),
	)
	assert.Equal(
		t,
		[]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		cfg.API.CORS.AllowMethods,
	)
	assert.Equal(t, 12*time.Hour, viper.GetDuration("api.cors.max_age"))
	assert.Equal(t, 5*time.Second, viper.GetDuration("api.read_timeout"))
	assert.Equal(t, 5*time.Second, viper.GetDuration("api.read_header_timeout"))
	assert.Equal(t, 10*time.Second, viper.GetDuration("api.write_timeout"))
	assert.Equal(t, 30*time.Second, viper.GetDuration("api.idle_timeout"))

	// Unmarshal the configuration into a staffapply.Config struct
	var config staffapply.Config
	err = viper.Unmarshal(
		&config, viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				LevelToStringHookFunc(),
			),
		),
	)
	assert.NoError(t, err)

	// Verify some key fields in the Config struct
	assert.Equal(t, "/home/foo/staffapply.sqlite3", config.Database)
	assert.Equal(t, "sqlite", config.DatabaseType)
	assert.Equal(t, slog.LevelInfo, config.DatabaseLogLevel.Level())
	assert.Equal(t, 200*time.Millisecond, config.DatabaseSlowThreshold)
	assert.Equal(t, slog.LevelInfo, config.LogLevel.Level())
	assert.Equal(t, 30*time.Second, config.StartupTimeout)
	assert.Equal(t, 60*time.Second, config.ShutdownTimeout)

	assert.Equal(t, "Staff Application", config.Application.Title)
	assert.Equal(t, "#ff8800", config.Application.EmbedColor)
	assert.Equal(t, "12h", config.Application.Cooldown)

	assert.Equal(t, "your-discord-bot-token", config.Discord.Token)
	assert.Equal(t, "your-discord-bot-app-id", config.Discord.ApplicationID)
	assert.Equal(t, "", config.Discord.GuildID)
	assert.Equal(t, slog.LevelWarn, config.Discord.LogLevel.Level())
	assert.Equal(t, slog.LevelWarn, config.Discord.DiscordGoLogLevel.Level())
	assert.Equal(t, "I'm here!", config.Discord.StartupMessage)
	assert.Equal(t, discordgo.Intent(1), config.Discord.GatewayIntents)

	assert.Equal(t, "127.0.0.1:5000", config.API.Listen)
	assert.Equal(t, slog.LevelDebug, config.API.LogLevel.Level())
	assert.Equal(t, 5*time.Second, config.API.ReadTimeout)
	assert.Equal(t, 5*time.Second, config.API.ReadHeaderTimeout)
	assert.Equal(t, 10*time.Second, config.API.WriteTimeout)
	assert.Equal(t, 30*time.Second, config.API.IdleTimeout)
	assert.Equal(t, 12*time.Hour, config.API.CORS.MaxAge)
}
