package collector

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/jonboulle/clockwork"

	"github.com/kaosmaps/kaos-worker/internal/cache"
	"github.com/kaosmaps/kaos-worker/internal/config"
	"github.com/kaosmaps/kaos-worker/internal/fetch"
)

// Deps is handed to every factory at build time. Collectors depend on the
// cache client and logger; neither depends back.
type Deps struct {
	Cfg    config.Config
	Logger *slog.Logger
	Store  cache.Store
	Fetch  *fetch.Client
	Clock  clockwork.Clock
}

type Factory func(Deps) (Collector, error)

type StreamFactory func(Deps) (StreamCollector, error)

var (
	factories       = map[string]Factory{}
	streamFactories = map[string]StreamFactory{}
)

// Register is called from collector package init functions.
func Register(name string, f Factory) {
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("collector %q registered twice", name))
	}
	factories[name] = f
}

func RegisterStream(name string, f StreamFactory) {
	if _, dup := streamFactories[name]; dup {
		panic(fmt.Sprintf("stream collector %q registered twice", name))
	}
	streamFactories[name] = f
}

// Build instantiates every registered collector not disabled by a
// DISABLE_<NAME> flag. A factory error aborts startup.
func Build(deps Deps) ([]Collector, []StreamCollector, error) {
	var cs []Collector
	for _, name := range sortedKeys(factories) {
		if config.Disabled(name) {
			deps.Logger.Info("collector disabled", "collector", name)
			continue
		}
		c, err := factories[name](deps)
		if err != nil {
			return nil, nil, fmt.Errorf("build collector %s: %w", name, err)
		}
		cs = append(cs, c)
	}

	var ss []StreamCollector
	for _, name := range sortedKeys(streamFactories) {
		if config.Disabled(name) {
			deps.Logger.Info("collector disabled", "collector", name)
			continue
		}
		s, err := streamFactories[name](deps)
		if err != nil {
			return nil, nil, fmt.Errorf("build stream collector %s: %w", name, err)
		}
		ss = append(ss, s)
	}
	return cs, ss, nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
