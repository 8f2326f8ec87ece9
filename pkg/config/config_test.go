package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "larder")
	path := writeFile(t, "name: ${SAMPLE_NAME}\nport: 80\n")

	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "larder" || s.Port != 80 {
		t.Errorf("loaded = %+v", s)
	}
}

func TestLoadKeepsUnsetFields(t *testing.T) {
	path := writeFile(t, "name: x\n")
	s := sample{Port: 8080}
	if err := Load(path, &s); err != nil {
		t.Fatal(err)
	}
	if s.Port != 8080 {
		t.Errorf("port = %d, want default kept", s.Port)
	}
}

func TestLoadValidates(t *testing.T) {
	path := writeFile(t, "port: 0\n")
	var s sample
	err := Load(path, &s)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("err = %v, want validation failure", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeFile(t, "port: [\n")
	var s sample
	if err := Load(path, &s); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	s := sample{Port: 1}
	if err := LoadWithDefaults(missing, "", &s); err != nil {
		t.Fatalf("missing file with valid defaults: %v", err)
	}

	var bad sample
	if err := LoadWithDefaults(missing, "", &bad); err == nil {
		t.Fatal("missing file with invalid defaults should fail validation")
	}

	fallback := writeFile(t, "port: 7\n")
	var f sample
	if err := LoadWithDefaults(missing, fallback, &f); err != nil || f.Port != 7 {
		t.Fatalf("fallback = %+v, %v", f, err)
	}
}
