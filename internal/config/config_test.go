package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	m := NewManagerAt(filepath.Join(t.TempDir(), "config.json"))

	if err := m.Load(); err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}

	cfg := m.Get()
	if cfg.Service.Host != "127.0.0.1" || cfg.Service.Port != 9999 {
		t.Errorf("Unexpected service defaults: %+v", cfg.Service)
	}
	if cfg.API.Port != 8377 {
		t.Errorf("Expected API port 8377, got %d", cfg.API.Port)
	}
	if cfg.Settings.ReconnectDelayS != 5 || cfg.Settings.FocusDelayMS != 50 {
		t.Errorf("Unexpected settings defaults: %+v", cfg.Settings)
	}
	if _, ok := cfg.EditorPaths["cursor"]; !ok {
		t.Error("Default editor paths missing cursor")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	m1 := NewManagerAt(path)
	cfg := DefaultConfig()
	cfg.API.Token = "secret"
	cfg.Mappings["0xABC"] = "alice"
	cfg.Users["alice"] = UserConfig{ProjectDir: `C:\proj\alice`, Editor: "code"}
	m1.Set(cfg)
	if err := m1.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	m2 := NewManagerAt(path)
	if err := m2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := m2.Get()
	if got.API.Token != "secret" {
		t.Errorf("Token lost: %q", got.API.Token)
	}
	if got.Mappings["0xABC"] != "alice" {
		t.Errorf("Mapping lost: %v", got.Mappings)
	}
	if got.Users["alice"].Editor != "code" {
		t.Errorf("User config lost: %+v", got.Users["alice"])
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"api":{"port":9000}}`), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManagerAt(path)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg := m.Get()
	if cfg.API.Port != 9000 {
		t.Errorf("Expected overridden API port 9000, got %d", cfg.API.Port)
	}
	if cfg.Service.Port != 9999 {
		t.Errorf("Service defaults lost: %+v", cfg.Service)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{nope"), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManagerAt(path)
	if err := m.Load(); err == nil {
		t.Error("Expected error for malformed config file")
	}
}

func TestSetFiresChangeCallback(t *testing.T) {
	m := NewManagerAt(filepath.Join(t.TempDir(), "config.json"))

	called := 0
	m.RegisterChangeCallback(func() { called++ })

	m.Set(DefaultConfig())
	if called != 1 {
		t.Errorf("Expected 1 callback call, got %d", called)
	}

	// Mapping helpers adjust config without firing the callback.
	m.SetMapping("0x1", "alice")
	m.RemoveMapping("0x1")
	if called != 1 {
		t.Errorf("Mapping helpers fired the callback: %d calls", called)
	}
}

func TestSetAndRemoveMapping(t *testing.T) {
	m := NewManagerAt(filepath.Join(t.TempDir(), "config.json"))

	m.SetMapping("0x1", "alice")
	if m.Get().Mappings["0x1"] != "alice" {
		t.Errorf("SetMapping did not stick: %v", m.Get().Mappings)
	}

	m.RemoveMapping("0x1")
	if _, ok := m.Get().Mappings["0x1"]; ok {
		t.Error("RemoveMapping left the entry")
	}
}

func TestServiceAddr(t *testing.T) {
	s := ServiceConfig{Host: "127.0.0.1", Port: 9999}
	if got := s.Addr(); got != "127.0.0.1:9999" {
		t.Errorf("Addr() = %q", got)
	}
}

func TestReconnectDelay(t *testing.T) {
	if got := (Settings{ReconnectDelayS: 2}).ReconnectDelay(); got != 2*time.Second {
		t.Errorf("Expected 2s, got %v", got)
	}
	if got := (Settings{}).ReconnectDelay(); got != 5*time.Second {
		t.Errorf("Expected 5s floor, got %v", got)
	}
	if got := (Settings{ReconnectDelayS: -1}).ReconnectDelay(); got != 5*time.Second {
		t.Errorf("Expected 5s floor for negative, got %v", got)
	}
}

func TestExpandUser(t *testing.T) {
	t.Setenv("USERNAME", "tester")

	got := ExpandUser(`C:\Users\%USERNAME%\AppData\Local\Programs\cursor\Cursor.exe`)
	want := `C:\Users\tester\AppData\Local\Programs\cursor\Cursor.exe`
	if got != want {
		t.Errorf("ExpandUser = %q, want %q", got, want)
	}

	plain := `C:\Program Files\Microsoft VS Code\Code.exe`
	if got := ExpandUser(plain); got != plain {
		t.Errorf("ExpandUser changed a plain path: %q", got)
	}
}
