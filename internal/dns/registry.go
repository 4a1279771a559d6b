package dns

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/yuriy-kovalchuk/dnsdeck/internal/secrets"
)

// Deps are the collaborators handed to every provider constructor.
type Deps struct {
	Log        logr.Logger
	HTTPClient *http.Client
	// Credentials overrides the store the provider would build from its
	// settings.
	Credentials secrets.Store
}

// Factory is a constructor function that providers register to create themselves.
type Factory func(deps Deps, settings map[string]string) (Provider, error)

var (
	mu        sync.Mutex
	factories = make(map[string]Factory)
)

// Register is called by provider packages in their init() to self-register.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("dns: provider %q already registered", name))
	}
	factories[name] = f
}

// Registered returns the registered provider names, sorted.
func Registered() []string {
	mu.Lock()
	defer mu.Unlock()
	return sets.List(sets.KeySet(factories))
}

// NewProvider looks up the named provider in the registry and creates it.
func NewProvider(name string, deps Deps, settings map[string]string) (Provider, error) {
	mu.Lock()
	f, ok := factories[name]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unsupported DNS provider: %q (registered: %v)", name, Registered())
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}
	if settings == nil {
		settings = map[string]string{}
	}
	return f(deps, settings)
}
