package source

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validDecl() Declaration {
	return Declaration{
		Name:     "quakes",
		Fetch:    FetchSpec{URL: "https://example.com/feed.json"},
		Schedule: ScheduleSpec{IntervalMs: 60000, TTLSeconds: 120},
		Redis:    RedisSpec{Key: "kaos:quakes:global"},
	}
}

func TestDeclaration_Validate(t *testing.T) {
	if err := validDecl().Validate(); err != nil {
		t.Fatalf("valid declaration rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Declaration)
	}{
		{"missing name", func(d *Declaration) { d.Name = "" }},
		{"missing url", func(d *Declaration) { d.Fetch.URL = "" }},
		{"zero interval", func(d *Declaration) { d.Schedule.IntervalMs = 0 }},
		{"zero ttl", func(d *Declaration) { d.Schedule.TTLSeconds = 0 }},
		{"missing key", func(d *Declaration) { d.Redis.Key = "" }},
		{"unknown auth type", func(d *Declaration) {
			d.Auth = &AuthSpec{Type: "oauth", EnvVar: "X"}
		}},
		{"apikey without header", func(d *Declaration) {
			d.Auth = &AuthSpec{Type: "apikey", EnvVar: "X"}
		}},
		{"auth without env var", func(d *Declaration) {
			d.Auth = &AuthSpec{Type: "bearer"}
		}},
		{"malformed data path", func(d *Declaration) {
			d.Transform = &TransformSpec{DataPath: "features..id"}
		}},
		{"malformed field path", func(d *Declaration) {
			d.Transform = &TransformSpec{Fields: map[string]string{"id": ".id"}}
		}},
	}
	for _, c := range cases {
		d := validDecl()
		c.mutate(&d)
		if err := d.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", c.name)
		}
	}
}

func TestDeclaration_IsEnabled(t *testing.T) {
	d := validDecl()
	if !d.IsEnabled() {
		t.Fatalf("nil enabled must default to true")
	}
	d.Enabled = boolPtr(false)
	if d.IsEnabled() {
		t.Fatalf("explicit false must disable")
	}
}

func TestAuthSpec_AuthHeader(t *testing.T) {
	t.Setenv("SRC_TOKEN", "s3cret")

	a := AuthSpec{Type: "bearer", EnvVar: "SRC_TOKEN"}
	name, value, ok := a.AuthHeader()
	if !ok || name != "Authorization" || value != "Bearer s3cret" {
		t.Fatalf("bearer = %q %q %v", name, value, ok)
	}

	a = AuthSpec{Type: "apikey", EnvVar: "SRC_TOKEN", Header: "X-API-Key"}
	name, value, ok = a.AuthHeader()
	if !ok || name != "X-API-Key" || value != "s3cret" {
		t.Fatalf("apikey = %q %q %v", name, value, ok)
	}

	a = AuthSpec{Type: "bearer", EnvVar: "SRC_TOKEN_MISSING"}
	if _, _, ok := a.AuthHeader(); ok {
		t.Fatalf("missing env var must yield ok=false")
	}
}

func TestResolvePath(t *testing.T) {
	doc := map[string]any{
		"geometry": map[string]any{
			"coordinates": []any{-9.1, 38.7, 0.0},
		},
		"properties": map[string]any{"mag": 4.2},
	}

	if v, ok := ResolvePath(doc, "properties.mag"); !ok || v != 4.2 {
		t.Fatalf("map walk = %v %v", v, ok)
	}
	if v, ok := ResolvePath(doc, "geometry.coordinates.1"); !ok || v != 38.7 {
		t.Fatalf("array index = %v %v", v, ok)
	}
	if _, ok := ResolvePath(doc, "geometry.coordinates.9"); ok {
		t.Fatalf("out-of-range index must miss")
	}
	if _, ok := ResolvePath(doc, "properties.depth"); ok {
		t.Fatalf("absent key must miss")
	}
	if v, ok := ResolvePath(doc, ""); !ok || v == nil {
		t.Fatalf("empty path must return the document")
	}
}

func TestLoad_SkipsSchemaAndDisabled(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	write("schema.json", `{"$schema": "http://json-schema.org/draft-07/schema#"}`)
	write("notes.txt", "not a source")
	write("active.json", `{
		"name": "active",
		"fetch": {"url": "https://example.com/a.json"},
		"schedule": {"intervalMs": 60000, "ttlSeconds": 120},
		"redis": {"key": "kaos:active:global"}
	}`)
	write("off.json", `{
		"name": "off",
		"enabled": false,
		"fetch": {"url": "https://example.com/b.json"},
		"schedule": {"intervalMs": 60000, "ttlSeconds": 120},
		"redis": {"key": "kaos:off:global"}
	}`)

	decls, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(decls) != 1 || decls[0].Name != "active" {
		t.Fatalf("decls = %+v, want only the enabled one", decls)
	}
}

func TestLoad_InvalidDeclarationFails(t *testing.T) {
	dir := t.TempDir()
	bad := `{"name": "bad", "fetch": {"url": ""}, "schedule": {"intervalMs": 1000, "ttlSeconds": 10}, "redis": {"key": "kaos:bad"}}`
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte(bad), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("invalid declaration must fail Load")
	}
}

func TestLoad_MissingDirIsEmpty(t *testing.T) {
	decls, err := Load(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(decls) != 0 {
		t.Fatalf("decls = %v, want none", decls)
	}
}

func TestGeneric_TransformFieldsAndFilter(t *testing.T) {
	d := validDecl()
	d.Transform = &TransformSpec{
		DataPath: "features",
		Fields: map[string]string{
			"id":  "id",
			"lat": "geometry.coordinates.1",
			"lon": "geometry.coordinates.0",
		},
		Filter: map[string]any{"id": "a"},
	}
	g := &Generic{decl: d, logger: discardLogger()}

	doc := map[string]any{
		"features": []any{
			map[string]any{
				"id":       "a",
				"geometry": map[string]any{"coordinates": []any{-9.1, 38.7}},
			},
			map[string]any{
				"id":       "b",
				"geometry": map[string]any{"coordinates": []any{0.0, 0.0}},
			},
		},
	}

	items := g.transform(doc)
	if len(items) != 1 {
		t.Fatalf("items = %v, want filter to keep one", items)
	}
	obj, ok := items[0].(map[string]any)
	if !ok {
		t.Fatalf("item type = %T", items[0])
	}
	if obj["id"] != "a" || obj["lat"] != 38.7 || obj["lon"] != -9.1 {
		t.Fatalf("mapped item = %v", obj)
	}
}

func TestGeneric_TransformMissingDataPath(t *testing.T) {
	d := validDecl()
	d.Transform = &TransformSpec{DataPath: "results"}
	g := &Generic{decl: d, logger: discardLogger()}

	items := g.transform(map[string]any{"other": []any{1, 2}})
	if len(items) != 0 {
		t.Fatalf("items = %v, want empty on missing path", items)
	}
}
