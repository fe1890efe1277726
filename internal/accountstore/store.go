// Package accountstore implements a narrow on-disk store for account
// configurations that can be re-added after a daemon restart. Neither
// cmd/oidc-agentd nor the core imports this package: persistence of *loaded* state is an
// explicit non-goal, and this store only ever persists the configuration
// an operator can later re-add, not live credentials mid-flow.
package accountstore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"golang.org/x/crypto/scrypt"

	"github.com/oidc-agent/agentd/internal/errkind"
	"github.com/oidc-agent/agentd/pkg/crypto"
)

const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltSize     = 16
)

// AccountConfig is one persisted account configuration.
type AccountConfig struct {
	Shortname    string   `json:"shortname"`
	Issuer       string   `json:"issuer"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret,omitempty"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	RedirectURIs []string `json:"redirect_uris,omitempty"`
	Scope        string   `json:"scope,omitempty"`
	TimeoutSecs  int64    `json:"timeout,omitempty"`
}

// Store is the narrow interface the rest of the daemon depends on; the
// file-backed implementation below is the only one this repository ships,
// but nothing outside this package assumes it.
type Store interface {
	Load(passphrase string) ([]AccountConfig, error)
	Save(passphrase string, configs []AccountConfig) error
}

// FileStore persists account configurations as a single AES-GCM encrypted
// JSON file, key-derived from the caller's passphrase via scrypt.
type FileStore struct {
	path string
}

// NewFileStore returns a Store backed by the file at path. The file need
// not exist yet; Load on a missing file returns an empty slice.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type onDiskFormat struct {
	Salt       []byte `json:"salt"`
	Ciphertext []byte `json:"ciphertext"`
}

// Load decrypts and parses the store's contents. An empty passphrase is
// never accepted: an accidentally-unencrypted store would defeat the
// point of the at-rest guarantee.
func (s *FileStore) Load(passphrase string) ([]AccountConfig, error) {
	if passphrase == "" {
		return nil, errkind.New(errkind.BadRequest, "account store passphrase must not be empty")
	}

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errkind.Wrap(errkind.BadRequest, "failed to read account store", err)
	}

	var disk onDiskFormat
	if err := json.Unmarshal(raw, &disk); err != nil {
		return nil, errkind.Wrap(errkind.BadRequest, "account store is corrupt", err)
	}

	key, err := scrypt.Key([]byte(passphrase), disk.Salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, errkind.Wrap(errkind.BadRequest, "failed to derive account store key", err)
	}

	plain, err := crypto.Decrypt(disk.Ciphertext, key)
	if err != nil {
		return nil, errkind.Wrap(errkind.BadRequest, "failed to decrypt account store (wrong passphrase?)", err)
	}

	var configs []AccountConfig
	if err := json.Unmarshal(plain, &configs); err != nil {
		return nil, errkind.Wrap(errkind.BadRequest, "account store payload is corrupt", err)
	}
	return configs, nil
}

// Save atomically replaces the store's contents: it writes to a temp file
// in the same directory and renames over the target, so a crash mid-write
// never leaves a partially-written store.
func (s *FileStore) Save(passphrase string, configs []AccountConfig) error {
	if passphrase == "" {
		return errkind.New(errkind.BadRequest, "account store passphrase must not be empty")
	}

	salt, err := crypto.RandBytes(saltSize)
	if err != nil {
		return errkind.Wrap(errkind.BadRequest, "failed to generate account store salt", err)
	}
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return errkind.Wrap(errkind.BadRequest, "failed to derive account store key", err)
	}

	plain, err := json.Marshal(configs)
	if err != nil {
		return errkind.Wrap(errkind.BadRequest, "failed to encode account store", err)
	}
	ciphertext, err := crypto.Encrypt(plain, key)
	if err != nil {
		return errkind.Wrap(errkind.BadRequest, "failed to encrypt account store", err)
	}

	disk := onDiskFormat{Salt: salt, Ciphertext: ciphertext}
	body, err := json.Marshal(disk)
	if err != nil {
		return errkind.Wrap(errkind.BadRequest, "failed to encode account store envelope", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".accountstore-*")
	if err != nil {
		return errkind.Wrap(errkind.BadRequest, "failed to create account store temp file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return errkind.Wrap(errkind.BadRequest, "failed to write account store temp file", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errkind.Wrap(errkind.BadRequest, "failed to set account store permissions", err)
	}
	if err := tmp.Close(); err != nil {
		return errkind.Wrap(errkind.BadRequest, "failed to finalize account store temp file", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return errkind.Wrap(errkind.BadRequest, "failed to install account store", err)
	}
	return nil
}
