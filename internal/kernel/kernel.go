package kernel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tika/pkg/tika"
)

// AdminChecker gates admin-only commands. The delegated-admin service
// satisfies this; when absent the kernel falls back to the platform
// permission flag alone.
type AdminChecker interface {
	IsAdmin(guildID, userID int64, hasAdminPermission bool) bool
}

// FeatureChecker gates feature-flagged commands. When absent all features
// count as enabled.
type FeatureChecker interface {
	Enabled(guildID int64, feature string) bool
}

// Kernel is the bot core orchestrating modules, drivers, and command dispatch.
type Kernel struct {
	cfg config

	services *ServiceRegistry

	mu          sync.RWMutex
	modules     map[string]tika.Module
	moduleOrder []string
	commands    map[string]commandRegistration
	drivers     map[string]tika.Driver
	driverOrder []string

	runMu   sync.Mutex
	running bool
}

type commandRegistration struct {
	moduleName string
	spec       tika.CommandSpec
	handler    tika.InteractionHandler
}

// New creates a new kernel runtime.
func New(options ...Option) *Kernel {
	cfg := defaultConfig()
	for _, option := range options {
		option(&cfg)
	}

	kernelRuntime := &Kernel{
		cfg:      cfg,
		services: NewServiceRegistry(),
		modules:  make(map[string]tika.Module),
		commands: make(map[string]commandRegistration),
		drivers:  make(map[string]tika.Driver),
	}
	if err := kernelRuntime.services.Register(
		tika.ServiceCommandCatalog,
		&kernelCommandCatalog{kernel: kernelRuntime},
	); err != nil {
		cfg.onAsyncError(context.Background(), "register command catalog service", err)
	}

	return kernelRuntime
}

// Services exposes the kernel service registry.
func (k *Kernel) Services() tika.ServiceRegistry {
	return k.services
}

// RegisterService registers a runtime service singleton.
func (k *Kernel) RegisterService(name string, service any) error {
	if err := k.services.Register(name, service); err != nil {
		return fmt.Errorf("register service %s: %w", name, err)
	}

	return nil
}

// RegisterModule registers a lifecycle-aware module, runs optional
// registration, and wires its declared commands.
func (k *Kernel) RegisterModule(ctx context.Context, module tika.Module) error {
	if module == nil {
		return fmt.Errorf("register module: nil module")
	}
	name := module.Name()
	if name == "" {
		return fmt.Errorf("register module: empty module name")
	}
	moduleSpec := module.Spec()
	if err := validateModuleSpec(moduleSpec); err != nil {
		return fmt.Errorf("register module %s: %w", name, err)
	}

	k.mu.Lock()
	if _, exists := k.modules[name]; exists {
		k.mu.Unlock()
		return fmt.Errorf("register module %s: %w", name, tika.ErrModuleAlreadyRegistered)
	}
	for _, handler := range moduleSpec.Handlers {
		commandName := handler.Command.Label()
		if existing, exists := k.commands[commandName]; exists {
			k.mu.Unlock()
			return fmt.Errorf(
				"register module %s: command %s: %w (held by %s)",
				name,
				commandName,
				tika.ErrCommandAlreadyRegistered,
				existing.moduleName,
			)
		}
	}
	k.modules[name] = module
	k.moduleOrder = append(k.moduleOrder, name)
	for _, handler := range moduleSpec.Handlers {
		k.commands[handler.Command.Label()] = commandRegistration{
			moduleName: name,
			spec:       handler.Command,
			handler:    handler.Handler,
		}
	}
	k.mu.Unlock()

	registrar, hasRegistrar := module.(tika.ModuleRegistrar)
	if !hasRegistrar {
		return nil
	}

	hookCtx, cancel := context.WithTimeout(ctx, k.cfg.moduleHookTimeout)
	defer cancel()

	runtime := &moduleRuntime{services: k.services}
	if err := runSafely("module "+name+" OnRegister", func() error {
		return registrar.OnRegister(hookCtx, runtime)
	}); err != nil {
		k.rollbackModuleRegistration(name)
		return fmt.Errorf("register module %s: %w", name, err)
	}

	return nil
}

// RegisterDriver registers a platform driver.
func (k *Kernel) RegisterDriver(driver tika.Driver) error {
	if driver == nil {
		return fmt.Errorf("register driver: nil driver")
	}
	name := driver.Name()
	if name == "" {
		return fmt.Errorf("register driver: empty name")
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if _, exists := k.drivers[name]; exists {
		return fmt.Errorf("register driver %s: duplicate name", name)
	}

	k.drivers[name] = driver
	k.driverOrder = append(k.driverOrder, name)

	return nil
}

// Dispatch routes one interaction to its registered command handler.
//
// Unregistered commands are ignored without error so ordinary conversation
// that happens to start with the prefix stays silent.
func (k *Kernel) Dispatch(ctx context.Context, interaction *tika.Interaction) error {
	if err := interaction.Validate(); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	k.mu.RLock()
	registration, exists := k.commands[tika.CommandPrefix+interaction.Command]
	k.mu.RUnlock()
	if !exists {
		return nil
	}

	if registration.spec.AdminOnly && !k.isAdmin(interaction) {
		return k.replyDenied(ctx, interaction)
	}
	if registration.spec.Feature != "" && !k.featureEnabled(interaction.GuildID, registration.spec.Feature) {
		return k.replyFeatureDisabled(ctx, interaction)
	}
	if len(interaction.Args) < registration.spec.MinArgs {
		return k.replyUsage(ctx, interaction, registration.spec)
	}

	handlerCtx, cancel := context.WithTimeout(ctx, k.cfg.handlerTimeout)
	defer cancel()

	err := runSafely(
		"module "+registration.moduleName+" command "+registration.spec.Label(),
		func() error {
			return registration.handler(handlerCtx, interaction)
		},
	)
	if err != nil {
		k.cfg.onAsyncError(ctx, "dispatch "+registration.spec.Label(), err)
		return err
	}

	return nil
}

// Run starts modules, runs drivers, and blocks until cancellation or fatal
// driver error.
func (k *Kernel) Run(ctx context.Context) error {
	if err := k.startRun(); err != nil {
		return err
	}
	defer k.finishRun()

	if err := k.startModules(ctx); err != nil {
		return err
	}

	runCtx, runCancel := context.WithCancel(ctx)
	driverErr, waitDrivers := k.startDrivers(runCtx)

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case err := <-driverErr:
		runErr = err
	}

	runCancel()
	waitDrivers()

	shutdownErr := k.shutdownAll(ctx)

	if isContextCancellation(runErr) {
		runErr = nil
	}
	if runErr != nil && shutdownErr != nil {
		return errors.Join(runErr, shutdownErr)
	}
	if runErr != nil {
		return runErr
	}

	return shutdownErr
}

func (k *Kernel) startRun() error {
	k.runMu.Lock()
	defer k.runMu.Unlock()

	if k.running {
		return fmt.Errorf("kernel run: already running")
	}
	k.running = true

	return nil
}

func (k *Kernel) finishRun() {
	k.runMu.Lock()
	k.running = false
	k.runMu.Unlock()
}

// startModules invokes OnStart in registration order with per-module timeouts.
func (k *Kernel) startModules(ctx context.Context) error {
	for _, name := range k.orderedModules() {
		lifecycle, ok := k.moduleByName(name).(tika.ModuleLifecycle)
		if !ok {
			continue
		}
		hookCtx, cancel := context.WithTimeout(ctx, k.cfg.moduleHookTimeout)
		err := runSafely("module "+name+" OnStart", func() error {
			return lifecycle.OnStart(hookCtx)
		})
		cancel()
		if err != nil {
			return fmt.Errorf("start module %s: %w", name, err)
		}
	}

	return nil
}

// startDrivers runs all registered drivers concurrently and returns an error
// channel delivering the first fatal driver error plus a bounded wait.
func (k *Kernel) startDrivers(ctx context.Context) (<-chan error, func()) {
	errChannel := make(chan error, 1)
	done := make(chan struct{})
	workerWG := &sync.WaitGroup{}

	k.mu.RLock()
	order := append([]string(nil), k.driverOrder...)
	drivers := make(map[string]tika.Driver, len(k.drivers))
	for name, driver := range k.drivers {
		drivers[name] = driver
	}
	k.mu.RUnlock()

	for _, name := range order {
		driver := drivers[name]
		if driver == nil {
			continue
		}

		workerWG.Add(1)
		go func(driverName string, adapter tika.Driver) {
			defer workerWG.Done()
			err := runSafely("driver "+driverName+" Start", func() error {
				return adapter.Start(ctx, k)
			})
			if err == nil || isContextCancellation(err) {
				return
			}
			select {
			case errChannel <- fmt.Errorf("run driver %s: %w", driverName, err):
			default:
			}
		}(name, driver)
	}

	go func() {
		workerWG.Wait()
		close(done)
	}()

	wait := func() {
		select {
		case <-done:
		case <-time.After(k.cfg.shutdownTimeout):
		}
	}

	go func() {
		<-done
		select {
		case errChannel <- context.Canceled:
		default:
		}
	}()

	return errChannel, wait
}

// shutdownAll tears down drivers then modules in reverse registration order.
// It uses WithoutCancel so cleanup still runs after parent cancellation.
func (k *Kernel) shutdownAll(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), k.cfg.shutdownTimeout)
	defer cancel()

	var shutdownErr error

	order := k.orderedDrivers()
	for idx := len(order) - 1; idx >= 0; idx-- {
		name := order[idx]
		driver := k.driverByName(name)
		if driver == nil {
			continue
		}
		err := runSafely("driver "+name+" Shutdown", func() error {
			return driver.Shutdown(shutdownCtx)
		})
		if err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown driver %s: %w", name, err))
		}
	}

	moduleOrder := k.orderedModules()
	for idx := len(moduleOrder) - 1; idx >= 0; idx-- {
		name := moduleOrder[idx]
		lifecycle, ok := k.moduleByName(name).(tika.ModuleLifecycle)
		if !ok {
			continue
		}
		hookCtx, hookCancel := context.WithTimeout(shutdownCtx, k.cfg.moduleHookTimeout)
		err := runSafely("module "+name+" OnShutdown", func() error {
			return lifecycle.OnShutdown(hookCtx)
		})
		hookCancel()
		if err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown module %s: %w", name, err))
		}
	}

	if shutdownErr != nil {
		return fmt.Errorf("kernel shutdown: %w", shutdownErr)
	}

	return nil
}

func (k *Kernel) rollbackModuleRegistration(name string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	delete(k.modules, name)
	k.moduleOrder = removeOrderedName(k.moduleOrder, name)
	for commandName, registration := range k.commands {
		if registration.moduleName == name {
			delete(k.commands, commandName)
		}
	}
}

func (k *Kernel) isAdmin(interaction *tika.Interaction) bool {
	checker, err := tika.ResolveAs[AdminChecker](k.services, tika.ServiceAdmins)
	if err != nil {
		return interaction.HasAdminPermission
	}

	return checker.IsAdmin(interaction.GuildID, interaction.UserID, interaction.HasAdminPermission)
}

func (k *Kernel) featureEnabled(guildID int64, feature string) bool {
	checker, err := tika.ResolveAs[FeatureChecker](k.services, tika.ServiceFeatures)
	if err != nil {
		return true
	}

	return checker.Enabled(guildID, feature)
}

func (k *Kernel) replyDenied(ctx context.Context, interaction *tika.Interaction) error {
	return k.replyLine(ctx, interaction, "general", "permission_denied",
		"You don't have the authority to ask that of me.", nil)
}

func (k *Kernel) replyFeatureDisabled(ctx context.Context, interaction *tika.Interaction) error {
	return k.replyLine(ctx, interaction, "general", "feature_disabled",
		"This feature is disabled for this server.", nil)
}

func (k *Kernel) replyUsage(ctx context.Context, interaction *tika.Interaction, spec tika.CommandSpec) error {
	usage := spec.Label()
	if spec.Usage != "" {
		usage += " " + spec.Usage
	}

	return k.replyLine(ctx, interaction, "general", "usage",
		"That's not how you use it. Try: `{usage}`", map[string]string{"usage": usage})
}

func (k *Kernel) replyLine(
	ctx context.Context,
	interaction *tika.Interaction,
	category, key, fallback string,
	vars map[string]string,
) error {
	line := fallback
	if personality, err := tika.ResolveAs[tika.Personality](k.services, tika.ServicePersonality); err == nil {
		line = personality.Line(category, key, vars)
	} else {
		for name, value := range vars {
			line = strings.ReplaceAll(line, "{"+name+"}", value)
		}
	}

	if err := interaction.Responder.ReplyPrivate(ctx, line); err != nil {
		return fmt.Errorf("reply %s.%s: %w", category, key, err)
	}

	return nil
}

func (k *Kernel) orderedModules() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return append([]string(nil), k.moduleOrder...)
}

func (k *Kernel) orderedDrivers() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return append([]string(nil), k.driverOrder...)
}

func (k *Kernel) moduleByName(name string) tika.Module {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return k.modules[name]
}

func (k *Kernel) driverByName(name string) tika.Driver {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return k.drivers[name]
}

// validateModuleSpec ensures declarative module definitions are coherent.
func validateModuleSpec(spec tika.ModuleSpec) error {
	if len(spec.Handlers) == 0 {
		return fmt.Errorf("module declares no handlers")
	}

	seenCommands := make(map[string]struct{}, len(spec.Handlers))
	for idx, handler := range spec.Handlers {
		if err := handler.Command.Validate(); err != nil {
			return fmt.Errorf("module handler %d: %w", idx, err)
		}
		if handler.Handler == nil {
			return fmt.Errorf("module handler %s: nil handler", handler.Command.Label())
		}
		label := handler.Command.Label()
		if _, exists := seenCommands[label]; exists {
			return fmt.Errorf("module handler %d: duplicate command %s", idx, label)
		}
		seenCommands[label] = struct{}{}
	}

	return nil
}

func removeOrderedName(ordered []string, target string) []string {
	filtered := make([]string, 0, len(ordered))
	for _, item := range ordered {
		if item != target {
			filtered = append(filtered, item)
		}
	}

	return filtered
}

// runSafely runs fn and converts a panic into a scope-tagged error, keeping
// one misbehaving module or driver from taking down the process.
func runSafely(scope string, fn func() error) (err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		err = fmt.Errorf("%s: panic recovered: %v", scope, recovered)
	}()

	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", scope, err)
	}

	return nil
}

func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

type moduleRuntime struct {
	services tika.ServiceRegistry
}

func (r *moduleRuntime) Services() tika.ServiceRegistry {
	return r.services
}

var (
	_ tika.InteractionSink = (*Kernel)(nil)
	_ tika.ModuleRuntime   = (*moduleRuntime)(nil)
)
