package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, path string, contents string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("create config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    slog.Level
		wantErr bool
	}{
		{name: "debug", input: "debug", want: slog.LevelDebug},
		{name: "info", input: "info", want: slog.LevelInfo},
		{name: "warn", input: "warn", want: slog.LevelWarn},
		{name: "warning", input: "warning", want: slog.LevelWarn},
		{name: "error", input: "error", want: slog.LevelError},
		{name: "invalid", input: "trace", wantErr: true},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			got, err := parseLogLevel(testCase.input)
			if testCase.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !testCase.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if testCase.wantErr {
				return
			}
			if got != testCase.want {
				t.Fatalf("level = %v, want %v", got, testCase.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("loads all supported fields from config file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bot.json")
		writeConfigFile(t, configPath, `{
			"log_level":"warn",
			"kernel":{
				"module_hook_timeout":"7s",
				"handler_timeout":"90s",
				"shutdown_timeout":"15s"
			},
			"discord":{"token":"bot-token"},
			"data":{"dir":"state/data"},
			"backup":{"dir":"state/backups","include":["guilds/**/*.json"]},
			"personality":{"file":"state/personality.json","watch":false},
			"llm":{"config_file":"state/llm.json"}
		}`)
		t.Setenv(envConfigFile, configPath)
		t.Setenv(envDiscordToken, "")

		cfg, err := loadConfig()
		if err != nil {
			t.Fatalf("load config failed: %v", err)
		}

		if cfg.logLevel != slog.LevelWarn {
			t.Fatalf("log level = %v, want %v", cfg.logLevel, slog.LevelWarn)
		}
		if cfg.moduleHookTimeout != 7*time.Second {
			t.Fatalf("module hook timeout = %s, want 7s", cfg.moduleHookTimeout)
		}
		if cfg.handlerTimeout != 90*time.Second {
			t.Fatalf("handler timeout = %s, want 90s", cfg.handlerTimeout)
		}
		if cfg.shutdownTimeout != 15*time.Second {
			t.Fatalf("shutdown timeout = %s, want 15s", cfg.shutdownTimeout)
		}
		if cfg.discordToken != "bot-token" {
			t.Fatalf("discord token = %q, want bot-token", cfg.discordToken)
		}
		if cfg.dataDir != "state/data" {
			t.Fatalf("data dir = %q, want state/data", cfg.dataDir)
		}
		if cfg.backupDir != "state/backups" {
			t.Fatalf("backup dir = %q, want state/backups", cfg.backupDir)
		}
		if len(cfg.backupInclude) != 1 || cfg.backupInclude[0] != "guilds/**/*.json" {
			t.Fatalf("backup include = %v", cfg.backupInclude)
		}
		if cfg.personalityFile != "state/personality.json" {
			t.Fatalf("personality file = %q", cfg.personalityFile)
		}
		if cfg.personalityWatch {
			t.Fatal("personality watch = true, want false")
		}
		if cfg.llmConfigFile != "state/llm.json" {
			t.Fatalf("llm config file = %q", cfg.llmConfigFile)
		}
	})

	t.Run("applies defaults for omitted fields", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bot.json")
		writeConfigFile(t, configPath, `{"discord":{"token":"bot-token"}}`)
		t.Setenv(envConfigFile, configPath)
		t.Setenv(envDiscordToken, "")

		cfg, err := loadConfig()
		if err != nil {
			t.Fatalf("load config failed: %v", err)
		}

		if cfg.logLevel != slog.LevelInfo {
			t.Fatalf("log level = %v, want info", cfg.logLevel)
		}
		if cfg.dataDir != defaultDataDir {
			t.Fatalf("data dir = %q, want %q", cfg.dataDir, defaultDataDir)
		}
		if cfg.backupDir != defaultBackupDir {
			t.Fatalf("backup dir = %q, want %q", cfg.backupDir, defaultBackupDir)
		}
		if !cfg.personalityWatch {
			t.Fatal("personality watch = false, want default true")
		}
		if cfg.llmConfigFile != defaultLLMConfigFile {
			t.Fatalf("llm config file = %q, want %q", cfg.llmConfigFile, defaultLLMConfigFile)
		}
	})

	t.Run("environment token overrides config file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bot.json")
		writeConfigFile(t, configPath, `{"discord":{"token":"file-token"}}`)
		t.Setenv(envConfigFile, configPath)
		t.Setenv(envDiscordToken, "env-token")

		cfg, err := loadConfig()
		if err != nil {
			t.Fatalf("load config failed: %v", err)
		}
		if cfg.discordToken != "env-token" {
			t.Fatalf("discord token = %q, want env-token", cfg.discordToken)
		}
	})

	t.Run("missing token is rejected", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bot.json")
		writeConfigFile(t, configPath, `{}`)
		t.Setenv(envConfigFile, configPath)
		t.Setenv(envDiscordToken, "")

		if _, err := loadConfig(); err == nil || !strings.Contains(err.Error(), "token") {
			t.Fatalf("load config error = %v, want token error", err)
		}
	})

	t.Run("invalid timeout is rejected", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bot.json")
		writeConfigFile(t, configPath, `{
			"discord":{"token":"bot-token"},
			"kernel":{"shutdown_timeout":"-1s"}
		}`)
		t.Setenv(envConfigFile, configPath)

		if _, err := loadConfig(); err == nil || !strings.Contains(err.Error(), "shutdown_timeout") {
			t.Fatalf("load config error = %v, want shutdown_timeout error", err)
		}
	})
}
