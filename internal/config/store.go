package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Save writes cfg as YAML. The bytes go to a temp file first and are then copied over the
// target, so a bind-mounted settings file keeps its inode. Plaintext passwords are hashed.
func Save(path string, cfg Config) error {
	if err := hashPassword(&cfg.Web.Auth); err != nil {
		return err
	}

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	staged, err := os.ReadFile(tmpName)
	if err != nil {
		return fmt.Errorf("read temp file: %w", err)
	}
	if err := os.WriteFile(path, staged, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// IsHashed reports whether a stored password is a bcrypt hash.
func IsHashed(password string) bool {
	return strings.HasPrefix(password, "$2a$") || strings.HasPrefix(password, "$2b$") || strings.HasPrefix(password, "$2y$")
}

// CheckPassword compares a login attempt against the stored value, hashed or legacy plaintext.
func CheckPassword(stored, given string) bool {
	if IsHashed(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return stored != "" && stored == given
}

func hashPassword(auth *AuthConfig) error {
	if auth.Password == "" || IsHashed(auth.Password) {
		return nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(auth.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	auth.Password = string(hashed)
	return nil
}

// Store owns the live settings: the file view and the effective view with env overrides.
type Store struct {
	path string

	mu   sync.RWMutex
	cfg  Config
	file Config
}

// Open loads path into a new Store.
func Open(path string) *Store {
	cfg, file := Load(path)
	return &Store{path: path, cfg: cfg, file: file}
}

// NewStore wraps an already loaded config; Update will persist to path.
func NewStore(path string, cfg Config) *Store {
	cfg.normalize()
	cfg.bindTimezone()
	return &Store{path: path, cfg: cfg, file: cfg.Clone()}
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Current returns an immutable snapshot of the effective settings.
func (s *Store) Current() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Update validates next, persists it and makes it current. Env overrides stay in effect
// but are not written to disk.
func (s *Store) Update(next Config) (Config, error) {
	next = next.Clone()
	next.normalize()
	if err := Validate(next); err != nil {
		return Config{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	restoreOverridden(&next, s.file)
	if err := hashPassword(&next.Web.Auth); err != nil {
		return Config{}, err
	}
	if err := Save(s.path, next); err != nil {
		return Config{}, err
	}

	file := next.Clone()
	file.bindTimezone()
	effective := next.Clone()
	if err := effective.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	effective.bindTimezone()

	s.file, s.cfg = file, effective
	return effective.Clone(), nil
}
