// Package invalidation defines the ops event that forces cached feed
// payloads to be dropped ahead of their TTL.
package invalidation

import (
	"fmt"
	"strings"
	"time"

	"github.com/kaosmaps/kaos-worker/internal/cache/keys"
)

type Event struct {
	Version   int       `json:"version"`
	TS        time.Time `json:"ts"`
	Collector string    `json:"collector,omitempty"`
	Keys      []string  `json:"keys,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	hasCollector := strings.TrimSpace(e.Collector) != ""
	hasKeys := len(e.Keys) > 0
	if !hasCollector && !hasKeys {
		return fmt.Errorf("one of collector or keys is required")
	}
	for _, k := range e.Keys {
		if !strings.HasPrefix(k, keys.Namespace+":") {
			return fmt.Errorf("key %q outside the %s namespace", k, keys.Namespace)
		}
		if strings.HasPrefix(k, keys.Namespace+":meta:") {
			return fmt.Errorf("key %q is collector metadata, not a payload", k)
		}
	}
	return nil
}

// Pattern returns the KEYS pattern covering a collector's payload keys.
func (e Event) Pattern() string {
	return fmt.Sprintf("%s:%s:*", keys.Namespace, e.Collector)
}
