// Package credentials stores provider logins.
package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/mangashelf/mangashelf/internal/errors"
	"github.com/mangashelf/mangashelf/internal/validation"
)

var validate = validation.New()

// Credential is one provider login.
type Credential struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Address  string `json:"address,omitempty" validate:"omitempty,url"`
}

// Sink stores credentials keyed by provider main id. Get returns
// errors.ErrNotFound when nothing is stored.
type Sink interface {
	Get(mainID string) (*Credential, error)
	Store(mainID string, c Credential) error
	Clear(mainID string) error
}

// FileSink keeps credentials in a JSON file readable only by the owner.
type FileSink struct {
	path string
	mu   sync.Mutex
}

// NewFileSink returns a sink backed by path. The file is created on the
// first Store.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (s *FileSink) load() (map[string]Credential, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]Credential{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeFilesystem, "read credentials")
	}
	all := map[string]Credential{}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, errors.Wrap(err, errors.CodeDecode, "decode credentials")
	}
	return all, nil
}

func (s *FileSink) save(all map[string]Credential) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "encode credentials")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, errors.CodeFilesystem, "create credentials dir")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, errors.CodeFilesystem, "write credentials")
	}
	if err := os.Chmod(tmp, 0o600); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, errors.CodeFilesystem, "chmod credentials")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, errors.CodeFilesystem, "replace credentials")
	}
	return nil
}

// Get returns the credential for mainID.
func (s *FileSink) Get(mainID string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	c, ok := all[mainID]
	if !ok {
		return nil, errors.NotFoundf("no credentials for %s", mainID)
	}
	return &c, nil
}

// Store saves or replaces the credential for mainID.
func (s *FileSink) Store(mainID string, c Credential) error {
	if err := validate.Validate(c); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return err
	}
	all[mainID] = c
	return s.save(all)
}

// Clear removes the credential for mainID.
func (s *FileSink) Clear(mainID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := all[mainID]; !ok {
		return nil
	}
	delete(all, mainID)
	return s.save(all)
}

// Memory is an in-process sink.
type Memory struct {
	mu  sync.Mutex
	all map[string]Credential
}

// NewMemory returns an empty in-process sink.
func NewMemory() *Memory {
	return &Memory{all: map[string]Credential{}}
}

// Get returns the credential for mainID.
func (m *Memory) Get(mainID string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.all[mainID]
	if !ok {
		return nil, errors.NotFoundf("no credentials for %s", mainID)
	}
	return &c, nil
}

// Store saves or replaces the credential for mainID.
func (m *Memory) Store(mainID string, c Credential) error {
	if err := validate.Validate(c); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.all[mainID] = c
	return nil
}

// Clear removes the credential for mainID.
func (m *Memory) Clear(mainID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.all, mainID)
	return nil
}
