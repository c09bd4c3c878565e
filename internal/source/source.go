// Package source loads JSON-declared feeds and instantiates a generic
// collector per declaration, so adding a low-complexity feed is a config
// change, not a code change.
package source

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type FetchSpec struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Timeout int               `json:"timeout"` // ms
}

type ScheduleSpec struct {
	IntervalMs int64 `json:"intervalMs"`
	TTLSeconds int   `json:"ttlSeconds"`
}

type RedisSpec struct {
	Key string `json:"key"`
}

type TransformSpec struct {
	DataPath string            `json:"dataPath,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	Filter   map[string]any    `json:"filter,omitempty"`
}

type AuthSpec struct {
	Type   string `json:"type"` // bearer | basic | apikey
	EnvVar string `json:"envVar"`
	Header string `json:"header,omitempty"` // apikey only
}

type Declaration struct {
	Name      string         `json:"name"`
	Enabled   *bool          `json:"enabled"`
	Fetch     FetchSpec      `json:"fetch"`
	Schedule  ScheduleSpec   `json:"schedule"`
	Redis     RedisSpec      `json:"redis"`
	Transform *TransformSpec `json:"transform,omitempty"`
	Auth      *AuthSpec      `json:"auth,omitempty"`
}

func (d Declaration) IsEnabled() bool { return d.Enabled == nil || *d.Enabled }

func (d Declaration) Interval() time.Duration {
	return time.Duration(d.Schedule.IntervalMs) * time.Millisecond
}

func (d Declaration) TTL() time.Duration {
	return time.Duration(d.Schedule.TTLSeconds) * time.Second
}

// Validate surfaces declaration errors at startup rather than at first run.
func (d Declaration) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("source: name is required")
	}
	if d.Fetch.URL == "" {
		return fmt.Errorf("source %s: fetch.url is required", d.Name)
	}
	if d.Schedule.IntervalMs <= 0 {
		return fmt.Errorf("source %s: schedule.intervalMs must be positive", d.Name)
	}
	if d.Schedule.TTLSeconds <= 0 {
		return fmt.Errorf("source %s: schedule.ttlSeconds must be positive", d.Name)
	}
	if d.Redis.Key == "" {
		return fmt.Errorf("source %s: redis.key is required", d.Name)
	}
	if d.Auth != nil {
		switch d.Auth.Type {
		case "bearer", "basic":
		case "apikey":
			if d.Auth.Header == "" {
				return fmt.Errorf("source %s: auth.header is required for apikey", d.Name)
			}
		default:
			return fmt.Errorf("source %s: unknown auth type %q", d.Name, d.Auth.Type)
		}
		if d.Auth.EnvVar == "" {
			return fmt.Errorf("source %s: auth.envVar is required", d.Name)
		}
	}
	if d.Transform != nil {
		if err := validatePath(d.Transform.DataPath); err != nil {
			return fmt.Errorf("source %s: dataPath: %w", d.Name, err)
		}
		for _, p := range d.Transform.Fields {
			if err := validatePath(p); err != nil {
				return fmt.Errorf("source %s: fields: %w", d.Name, err)
			}
		}
	}
	return nil
}

func validatePath(p string) error {
	if p == "" {
		return nil
	}
	for _, seg := range strings.Split(p, ".") {
		if seg == "" {
			return fmt.Errorf("malformed dotted path %q", p)
		}
	}
	return nil
}

// Load reads every *.json declaration in dir, skipping the schema file.
// Disabled declarations are dropped here so registration never sees them.
func Load(dir string) ([]Declaration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sources dir: %w", err)
	}

	var out []Declaration
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || name == "schema.json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read source %s: %w", name, err)
		}
		var d Declaration
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("parse source %s: %w", name, err)
		}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("source file %s: %w", name, err)
		}
		if !d.IsEnabled() {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// AuthHeader resolves the declaration's auth into a header name/value pair.
// A missing env var yields ok=false; callers log and proceed unauthenticated.
func (a AuthSpec) AuthHeader() (name, value string, ok bool) {
	secret := os.Getenv(a.EnvVar)
	if secret == "" {
		return "", "", false
	}
	switch a.Type {
	case "bearer":
		return "Authorization", "Bearer " + secret, true
	case "basic":
		return "Authorization", "Basic " + base64.StdEncoding.EncodeToString([]byte(secret)), true
	case "apikey":
		return a.Header, secret, true
	}
	return "", "", false
}

// ResolvePath walks dotted segments into parsed JSON. Numeric segments index
// into arrays, so "geometry.coordinates.1" reaches a latitude.
func ResolvePath(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch t := cur.(type) {
		case map[string]any:
			next, ok := t[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(t) {
				return nil, false
			}
			cur = t[i]
		default:
			return nil, false
		}
	}
	return cur, true
}
