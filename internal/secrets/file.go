package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// FileStore keeps credentials for several accounts in one YAML file:
//
//	cloudflare:
//	  token: abc
//	route53:
//	  access_key_id: AKIA...
//	  secret_access_key: ...
type FileStore struct {
	Path    string
	Account string
}

func (s *FileStore) Read() (*Credential, error) {
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	c, ok := all[s.Account]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *FileStore) Save(c Credential) error {
	all, err := s.load()
	if err != nil {
		return err
	}
	all[s.Account] = c
	return s.write(all)
}

func (s *FileStore) Delete() error {
	all, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := all[s.Account]; !ok {
		return nil
	}
	delete(all, s.Account)
	return s.write(all)
}

func (s *FileStore) load() (map[string]Credential, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Credential{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	all := make(map[string]Credential)
	if err := yaml.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parsing credentials file: %w", err)
	}
	return all, nil
}

func (s *FileStore) write(all map[string]Credential) error {
	data, err := yaml.Marshal(all)
	if err != nil {
		return fmt.Errorf("encoding credentials file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}
	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}
	return nil
}
