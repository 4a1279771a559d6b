package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

const (
	iniAccessKey    = "aws_access_key_id"
	iniSecretKey    = "aws_secret_access_key"
	iniSessionToken = "aws_session_token"
)

// SharedCredentialsStore reads and writes one profile of an AWS shared
// credentials file (~/.aws/credentials).
type SharedCredentialsStore struct {
	Path    string
	Profile string
}

// NewSharedCredentialsStore applies the AWS CLI defaults for empty arguments:
// AWS_SHARED_CREDENTIALS_FILE, then ~/.aws/credentials, and AWS_PROFILE, then
// "default".
func NewSharedCredentialsStore(path, profile string) *SharedCredentialsStore {
	if path == "" {
		path = os.Getenv("AWS_SHARED_CREDENTIALS_FILE")
	}
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".aws", "credentials")
		}
	}
	if profile == "" {
		profile = os.Getenv("AWS_PROFILE")
	}
	if profile == "" {
		profile = "default"
	}
	return &SharedCredentialsStore{Path: path, Profile: profile}
}

func (s *SharedCredentialsStore) Read() (*Credential, error) {
	f, err := s.load()
	if err != nil || f == nil {
		return nil, err
	}
	sec, err := f.GetSection(s.Profile)
	if err != nil {
		return nil, nil
	}
	c := Credential{
		AccessKeyID:     sec.Key(iniAccessKey).String(),
		SecretAccessKey: sec.Key(iniSecretKey).String(),
		SessionToken:    sec.Key(iniSessionToken).String(),
	}
	if c == (Credential{}) {
		return nil, nil
	}
	return &c, nil
}

func (s *SharedCredentialsStore) Save(c Credential) error {
	f, err := ini.LooseLoad(s.Path)
	if err != nil {
		return fmt.Errorf("reading shared credentials: %w", err)
	}
	sec := f.Section(s.Profile)
	sec.Key(iniAccessKey).SetValue(c.AccessKeyID)
	sec.Key(iniSecretKey).SetValue(c.SecretAccessKey)
	if c.SessionToken != "" {
		sec.Key(iniSessionToken).SetValue(c.SessionToken)
	} else {
		sec.DeleteKey(iniSessionToken)
	}
	return s.write(f)
}

func (s *SharedCredentialsStore) Delete() error {
	f, err := s.load()
	if err != nil || f == nil {
		return err
	}
	f.DeleteSection(s.Profile)
	return s.write(f)
}

// load returns a nil file when the credentials file does not exist.
func (s *SharedCredentialsStore) load() (*ini.File, error) {
	if _, err := os.Stat(s.Path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	f, err := ini.Load(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading shared credentials: %w", err)
	}
	return f, nil
}

func (s *SharedCredentialsStore) write(f *ini.File) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}
	if err := f.SaveTo(s.Path); err != nil {
		return fmt.Errorf("writing shared credentials: %w", err)
	}
	return os.Chmod(s.Path, 0o600)
}
