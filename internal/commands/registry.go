package commands

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps command names and aliases to commands.
type Registry struct {
	mu      sync.RWMutex
	primary map[string]Command
	aliases map[string]string // alias -> primary name
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{
		primary: make(map[string]Command),
		aliases: make(map[string]string),
	}
}

// Register adds c under its name and aliases.
// Returns an error for an empty name or a name or alias already taken.
func (r *Registry) Register(c Command) error {
	name := c.Name()
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("command has no name: %T", c)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.takenLocked(name) {
		return fmt.Errorf("command already registered: %s", name)
	}
	for _, alias := range c.Aliases() {
		if alias == name || r.takenLocked(alias) {
			return fmt.Errorf("command alias already registered: %s", alias)
		}
	}

	r.primary[name] = c
	for _, alias := range c.Aliases() {
		r.aliases[alias] = name
	}
	return nil
}

func (r *Registry) takenLocked(name string) bool {
	_, isCmd := r.primary[name]
	_, isAlias := r.aliases[name]
	return isCmd || isAlias
}

// Find looks up a command by name or alias.
func (r *Registry) Find(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if primary, ok := r.aliases[name]; ok {
		name = primary
	}
	cmd, ok := r.primary[name]
	return cmd, ok
}

// All returns the registered commands sorted by name.
func (r *Registry) All() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmds := make([]Command, 0, len(r.primary))
	for _, cmd := range r.primary {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name() < cmds[j].Name() })
	return cmds
}

// DefaultRegistry is the global command registry.
var DefaultRegistry = NewRegistry()

// Register adds a command to the default registry.
func Register(c Command) {
	if err := DefaultRegistry.Register(c); err != nil {
		panic(err)
	}
}
