package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tika/internal/admin"
	"tika/internal/ai"
	"tika/internal/backup"
	"tika/internal/driver/discord"
	"tika/internal/feature"
	"tika/internal/kernel"
	"tika/internal/knowledge"
	"tika/internal/monitor"
	"tika/internal/personality"
	"tika/internal/store"
	"tika/modules/botadmin"
	backupmodule "tika/modules/backup"
	"tika/modules/chat"
	"tika/modules/features"
	"tika/modules/help"
	"tika/modules/knowledgebase"
	"tika/modules/status"
	"tika/pkg/llm"
	llmconfig "tika/pkg/llm/config"
	"tika/pkg/tika"
)

const (
	envConfigFile   = "TIKA_CONFIG_FILE"
	envDiscordToken = "DISCORD_TOKEN"

	defaultConfigFilePath   = "config/bot.json"
	alternateConfigFilePath = "bin/config/bot.json"

	defaultDataDir         = "data"
	defaultBackupDir       = "backups"
	defaultPersonalityFile = "assets/personality.json"
	defaultLLMConfigFile   = "config/llm.json"

	defaultModuleHookTimeout = 5 * time.Second
	defaultHandlerTimeout    = 2 * time.Minute
	defaultShutdownTimeout   = 10 * time.Second
)

type appConfig struct {
	logLevel slog.Level

	moduleHookTimeout time.Duration
	handlerTimeout    time.Duration
	shutdownTimeout   time.Duration

	discordToken string

	dataDir          string
	backupDir        string
	backupInclude    []string
	personalityFile  string
	personalityWatch bool
	llmConfigFile    string
}

type fileConfig struct {
	LogLevel    string                `json:"log_level"`
	Kernel      fileKernelConfig      `json:"kernel"`
	Discord     fileDiscordConfig     `json:"discord"`
	Data        fileDataConfig        `json:"data"`
	Backup      fileBackupConfig      `json:"backup"`
	Personality filePersonalityConfig `json:"personality"`
	LLM         fileLLMConfig         `json:"llm"`
}

type fileKernelConfig struct {
	ModuleHookTimeout string `json:"module_hook_timeout"`
	HandlerTimeout    string `json:"handler_timeout"`
	ShutdownTimeout   string `json:"shutdown_timeout"`
}

type fileDiscordConfig struct {
	Token string `json:"token"`
}

type fileDataConfig struct {
	Dir string `json:"dir"`
}

type fileBackupConfig struct {
	Dir     string   `json:"dir"`
	Include []string `json:"include"`
}

type filePersonalityConfig struct {
	File  string `json:"file"`
	Watch *bool  `json:"watch"`
}

type fileLLMConfig struct {
	ConfigFile string `json:"config_file"`
}

func run() error {
	// Optional .env for local development; missing files are fine.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))

	llmCfg, err := llmconfig.LoadFile(cfg.llmConfigFile)
	if err != nil {
		return err
	}
	generatorRegistry, err := llm.BuildRegistry(llmCfg)
	if err != nil {
		return err
	}
	generator, err := generatorRegistry.Resolve(llmCfg.Persona.Provider)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	guildStore, err := store.NewManager(cfg.dataDir, logger)
	if err != nil {
		return err
	}

	adminManager, err := admin.NewManager(guildStore, logger)
	if err != nil {
		return err
	}
	if err := adminManager.Load(ctx); err != nil {
		return fmt.Errorf("load admin state: %w", err)
	}

	featureManager, err := feature.NewManager(guildStore, logger)
	if err != nil {
		return err
	}
	if err := featureManager.Load(ctx); err != nil {
		return fmt.Errorf("load feature state: %w", err)
	}

	personalityStore, err := personality.NewStore(cfg.personalityFile, logger, cfg.personalityWatch)
	if err != nil {
		return err
	}
	defer personalityStore.Close()

	distiller := &deferredDistiller{}
	knowledgeService, err := knowledge.NewService(
		guildStore,
		logger,
		knowledge.WithDistiller(distiller),
	)
	if err != nil {
		return err
	}

	chatService, err := ai.NewService(generator, knowledgeService, logger, ai.Config{
		Model:           llmCfg.Persona.Model,
		SystemPrompt:    llmCfg.Persona.SystemPrompt,
		Temperature:     llmCfg.Persona.Temperature,
		MaxOutputTokens: llmCfg.Persona.MaxOutputTokens,
		HistoryLimit:    llmCfg.Persona.HistoryLimit,
		RequestTimeout:  llmCfg.RequestTimeout,
	})
	if err != nil {
		return err
	}
	distiller.bind(chatService)

	backupService, err := backup.NewService(cfg.dataDir, cfg.backupDir, logger, cfg.backupInclude)
	if err != nil {
		return err
	}

	resourceMonitor := monitor.New()

	discordDriver, err := discord.New(discord.Config{Token: cfg.discordToken}, logger)
	if err != nil {
		return err
	}

	kernelRuntime := kernel.New(
		kernel.WithLogger(logger),
		kernel.WithModuleHookTimeout(cfg.moduleHookTimeout),
		kernel.WithHandlerTimeout(cfg.handlerTimeout),
		kernel.WithShutdownTimeout(cfg.shutdownTimeout),
	)

	services := map[string]any{
		tika.ServiceLogger:      logger,
		tika.ServiceGuildStore:  guildStore,
		tika.ServiceAdmins:      adminManager,
		tika.ServiceFeatures:    featureManager,
		tika.ServicePersonality: personalityStore,
		tika.ServiceChat:        chatService,
		tika.ServiceKnowledge:   knowledgeService,
		tika.ServiceBackups:     backupService,
		tika.ServiceMonitor:     resourceMonitor,
		tika.ServicePresence:    discordDriver,
	}
	for name, service := range services {
		if err := kernelRuntime.RegisterService(name, service); err != nil {
			return err
		}
	}

	if err := kernelRuntime.RegisterDriver(discordDriver); err != nil {
		return fmt.Errorf("register discord driver: %w", err)
	}

	modules := []tika.Module{
		botadmin.New(),
		features.New(),
		chat.New(),
		knowledgebase.New(),
		backupmodule.New(),
		status.New(),
		help.New(),
	}
	for _, module := range modules {
		if err := kernelRuntime.RegisterModule(ctx, module); err != nil {
			return fmt.Errorf("register module %s: %w", module.Name(), err)
		}
	}

	logger.Info("tika starting", "data_dir", cfg.dataDir, "persona_model", llmCfg.Persona.Model)

	if err := kernelRuntime.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run kernel: %w", err)
	}

	return nil
}

func loadConfig() (appConfig, error) {
	cfg := defaultAppConfig()

	configFile, err := resolveConfigFilePath()
	if err != nil {
		return appConfig{}, err
	}
	if err := applyConfigFile(&cfg, configFile); err != nil {
		return appConfig{}, err
	}

	if token := strings.TrimSpace(os.Getenv(envDiscordToken)); token != "" {
		cfg.discordToken = token
	}
	if cfg.discordToken == "" {
		return appConfig{}, fmt.Errorf(
			"discord token is required; set discord.token in %s or %s",
			configFile,
			envDiscordToken,
		)
	}

	return cfg, nil
}

func resolveConfigFilePath() (string, error) {
	if configFile := strings.TrimSpace(os.Getenv(envConfigFile)); configFile != "" {
		return configFile, nil
	}

	candidates := []string{defaultConfigFilePath, alternateConfigFilePath}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config file %s is a directory", candidate)
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat config file %s: %w", candidate, err)
		}
	}

	return "", fmt.Errorf(
		"config file not found; create %s or %s, or set %s",
		defaultConfigFilePath,
		alternateConfigFilePath,
		envConfigFile,
	)
}

func defaultAppConfig() appConfig {
	return appConfig{
		logLevel: slog.LevelInfo,

		moduleHookTimeout: defaultModuleHookTimeout,
		handlerTimeout:    defaultHandlerTimeout,
		shutdownTimeout:   defaultShutdownTimeout,

		dataDir:          defaultDataDir,
		backupDir:        defaultBackupDir,
		personalityFile:  defaultPersonalityFile,
		personalityWatch: true,
		llmConfigFile:    defaultLLMConfigFile,
	}
}

func applyConfigFile(cfg *appConfig, path string) error {
	if cfg == nil {
		return fmt.Errorf("apply config file: nil config")
	}
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed fileConfig
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if rawLevel := strings.TrimSpace(parsed.LogLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return fmt.Errorf("parse log_level: %w", err)
		}
		cfg.logLevel = level
	}

	if err := applyTimeout(&cfg.moduleHookTimeout, parsed.Kernel.ModuleHookTimeout, "kernel.module_hook_timeout"); err != nil {
		return err
	}
	if err := applyTimeout(&cfg.handlerTimeout, parsed.Kernel.HandlerTimeout, "kernel.handler_timeout"); err != nil {
		return err
	}
	if err := applyTimeout(&cfg.shutdownTimeout, parsed.Kernel.ShutdownTimeout, "kernel.shutdown_timeout"); err != nil {
		return err
	}

	cfg.discordToken = strings.TrimSpace(parsed.Discord.Token)

	if dir := strings.TrimSpace(parsed.Data.Dir); dir != "" {
		cfg.dataDir = dir
	}
	if dir := strings.TrimSpace(parsed.Backup.Dir); dir != "" {
		cfg.backupDir = dir
	}
	if len(parsed.Backup.Include) > 0 {
		cfg.backupInclude = append([]string(nil), parsed.Backup.Include...)
	}
	if file := strings.TrimSpace(parsed.Personality.File); file != "" {
		cfg.personalityFile = file
	}
	if parsed.Personality.Watch != nil {
		cfg.personalityWatch = *parsed.Personality.Watch
	}
	if file := strings.TrimSpace(parsed.LLM.ConfigFile); file != "" {
		cfg.llmConfigFile = file
	}

	return nil
}

func applyTimeout(target *time.Duration, raw, name string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	timeout, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	if timeout <= 0 {
		return fmt.Errorf("parse %s: must be > 0", name)
	}
	*target = timeout

	return nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", raw)
	}
}

// deferredDistiller breaks the construction cycle between the knowledge
// service (which consumes a distiller) and the chat service (which consumes
// the knowledge service as its fact source).
type deferredDistiller struct {
	service *ai.Service
}

func (d *deferredDistiller) bind(service *ai.Service) {
	d.service = service
}

func (d *deferredDistiller) DistillFact(ctx context.Context, sourceURL, pageText string) (string, error) {
	if d.service == nil {
		return "", fmt.Errorf("distill fact: chat service not bound")
	}

	return d.service.DistillFact(ctx, sourceURL, pageText)
}

var _ knowledge.Distiller = (*deferredDistiller)(nil)
