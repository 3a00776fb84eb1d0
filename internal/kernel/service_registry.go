package kernel

import (
	"fmt"
	"strings"
	"sync"

	"tika/pkg/tika"
)

// ServiceRegistry is the kernel's in-memory service registry. Binding is
// write-once per name: modules resolve collaborators by the stable name
// constants in pkg/tika, and a name must not change hands once the kernel
// is running.
type ServiceRegistry struct {
	mu       sync.RWMutex
	services map[string]any
}

// NewServiceRegistry creates an empty service registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]any),
	}
}

// Register binds a service singleton to name. Names are whitespace-trimmed.
// A duplicate registration fails and names the type already holding the
// binding so wiring mistakes surface at startup.
func (r *ServiceRegistry) Register(name string, service any) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("register service: empty name")
	}
	if service == nil {
		return fmt.Errorf("register service %s: nil service", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if held, exists := r.services[name]; exists {
		return fmt.Errorf(
			"register service %s: %w (held by %T)",
			name,
			tika.ErrServiceAlreadyRegistered,
			held,
		)
	}
	r.services[name] = service

	return nil
}

// Resolve returns the service bound to name.
func (r *ServiceRegistry) Resolve(name string) (any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("resolve service: empty name")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	service, exists := r.services[name]
	if !exists {
		return nil, fmt.Errorf("resolve service %s: %w", name, tika.ErrServiceNotFound)
	}

	return service, nil
}

var _ tika.ServiceRegistry = (*ServiceRegistry)(nil)
