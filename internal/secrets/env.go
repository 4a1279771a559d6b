package secrets

import "os"

// EnvStore reads credentials from environment variables. Save and Delete
// only affect the current process.
type EnvStore struct {
	TokenVar     string
	AccessKeyVar string
	SecretKeyVar string
	// SessionTokenVar is optional; it names the variable holding the
	// session token of temporary AWS credentials.
	SessionTokenVar string
}

func (s *EnvStore) Read() (*Credential, error) {
	c := Credential{
		Token:           getenv(s.TokenVar),
		AccessKeyID:     getenv(s.AccessKeyVar),
		SecretAccessKey: getenv(s.SecretKeyVar),
		SessionToken:    getenv(s.SessionTokenVar),
	}
	if c == (Credential{}) {
		return nil, nil
	}
	return &c, nil
}

func (s *EnvStore) Save(c Credential) error {
	for name, v := range map[string]string{
		s.TokenVar:        c.Token,
		s.AccessKeyVar:    c.AccessKeyID,
		s.SecretKeyVar:    c.SecretAccessKey,
		s.SessionTokenVar: c.SessionToken,
	} {
		if name == "" || v == "" {
			continue
		}
		if err := os.Setenv(name, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *EnvStore) Delete() error {
	for _, name := range []string{s.TokenVar, s.AccessKeyVar, s.SecretKeyVar, s.SessionTokenVar} {
		if name == "" {
			continue
		}
		if err := os.Unsetenv(name); err != nil {
			return err
		}
	}
	return nil
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
