package env

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Var map[string]string

// Env composes the extra environment handed to the spawned program. Only
// overrides are returned; the child inherits the rest from the parent.
type Env struct {
	Var  Var // overrides (K->V), later sources win
	base Var // cached OS environment used for ${VAR} lookups
}

func New() *Env {
	return &Env{Var: make(Var)}
}

// FromOS caches the current process environment as the expansion base.
func (e *Env) FromOS() {
	base := make(Var)
	for _, kv := range os.Environ() {
		if k, v, ok := split(kv); ok {
			base[k] = v
		}
	}
	e.base = base
}

// Set sets an override K=V.
func (e *Env) Set(k, v string) {
	if e.Var == nil {
		e.Var = make(Var)
	}
	if k != "" {
		e.Var[k] = v
	}
}

// SetList applies "K=V" entries in order; malformed entries are skipped.
func (e *Env) SetList(kvs []string) {
	for _, kv := range kvs {
		if k, v, ok := split(kv); ok {
			e.Set(k, v)
		}
	}
}

// LoadFile applies a .env file: KEY=VALUE lines, blank lines and # comments skipped.
func (e *Env) LoadFile(path string) error {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, ok := split(line); ok {
			e.Set(strings.TrimSpace(k), strings.TrimSpace(v))
		}
	}
	return nil
}

// Overrides returns the overrides as sorted "K=V" pairs with ${VAR} and $VAR
// expanded against the overrides first, then the OS environment. Expansion
// is a single pass; unknown variables expand to "".
func (e *Env) Overrides() []string {
	if len(e.Var) == 0 {
		return nil
	}
	if e.base == nil {
		e.FromOS()
	}
	lookup := func(name string) string {
		if v, ok := e.Var[name]; ok {
			return v
		}
		return e.base[name]
	}
	keys := make([]string, 0, len(e.Var))
	for k := range e.Var {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+os.Expand(e.Var[k], lookup))
	}
	return out
}

func split(kv string) (string, string, bool) {
	i := strings.IndexByte(kv, '=')
	if i <= 0 {
		return "", "", false
	}
	return kv[:i], kv[i+1:], true
}
