// Package secrets supplies provider credentials. Stores are read on every
// request; nothing here caches a secret.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// ErrNotFound is returned by the adapters when the store holds no usable
// credential.
var ErrNotFound = errors.New("secrets: credential not found")

// Credential holds either a bearer token or an access key pair.
type Credential struct {
	Token           string `yaml:"token,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	// SessionToken accompanies temporary key pairs.
	SessionToken string `yaml:"session_token,omitempty"`
}

func (c Credential) HasToken() bool {
	return strings.TrimSpace(c.Token) != ""
}

func (c Credential) HasKeyPair() bool {
	return strings.TrimSpace(c.AccessKeyID) != "" && strings.TrimSpace(c.SecretAccessKey) != ""
}

// Store is a credential store. Read returns (nil, nil) when nothing is stored.
type Store interface {
	Read() (*Credential, error)
	Save(Credential) error
	Delete() error
}

const (
	SourceEnv       = "env"
	SourceFile      = "file"
	SourceAWSShared = "aws_shared"
)

// Open builds the store selected by the "credential_source" setting. account
// keys entries in the YAML file store; env supplies the default variable
// names for the env store.
func Open(settings map[string]string, account string, env EnvStore) (Store, error) {
	source := settings["credential_source"]
	if source == "" {
		source = SourceEnv
	}

	switch source {
	case SourceEnv:
		if v := settings["token_env"]; v != "" {
			env.TokenVar = v
		}
		if v := settings["access_key_env"]; v != "" {
			env.AccessKeyVar = v
		}
		if v := settings["secret_key_env"]; v != "" {
			env.SecretKeyVar = v
		}
		if v := settings["session_token_env"]; v != "" {
			env.SessionTokenVar = v
		}
		return &env, nil
	case SourceFile:
		path := settings["credentials_file"]
		if path == "" {
			p, err := DefaultFilePath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		if v := settings["account"]; v != "" {
			account = v
		}
		return &FileStore{Path: path, Account: account}, nil
	case SourceAWSShared:
		return NewSharedCredentialsStore(settings["credentials_file"], settings["profile"]), nil
	}
	return nil, fmt.Errorf("secrets: unknown credential_source %q", source)
}

// DefaultFilePath is $XDG_CONFIG_HOME/dnsdeck/credentials.yaml or the OS
// equivalent.
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("secrets: locating config dir: %w", err)
	}
	return filepath.Join(dir, "dnsdeck", "credentials.yaml"), nil
}

// BearerToken reads the token from s.
func BearerToken(s Store) (string, error) {
	c, err := s.Read()
	if err != nil {
		return "", err
	}
	if c == nil || !c.HasToken() {
		return "", ErrNotFound
	}
	return strings.TrimSpace(c.Token), nil
}

// AWSCredentials adapts s to the SDK credentials interface. Every Retrieve
// reads the store again.
func AWSCredentials(s Store) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		c, err := s.Read()
		if err != nil {
			return aws.Credentials{}, err
		}
		if c == nil || !c.HasKeyPair() {
			return aws.Credentials{}, ErrNotFound
		}
		return aws.Credentials{
			AccessKeyID:     strings.TrimSpace(c.AccessKeyID),
			SecretAccessKey: strings.TrimSpace(c.SecretAccessKey),
			SessionToken:    strings.TrimSpace(c.SessionToken),
			Source:          "dnsdeck",
		}, nil
	})
}
