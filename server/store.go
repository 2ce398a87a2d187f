package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	opaque "github.com/vivianlazaras/verdant"
	"github.com/vivianlazaras/verdant/internal/curve"
)

const setupFileVersion = 1

// setupFile is the on-disk, version-tagged JSON envelope for a
// ServerSetup, matching spec.md §6's "only the server's ServerSetup (opaque
// blob, version-tagged) ... need durable storage".
type setupFile struct {
	Version         int    `json:"version"`
	ServerIdentity  string `json:"server_identity"`
	ServerSecretKey string `json:"server_secret_key"`
	ServerPublicKey string `json:"server_public_key"`
	OPRFSeed        string `json:"oprf_seed"`
}

// SaveSetup persists setup to path as a version-tagged JSON blob.
func SaveSetup(setup *opaque.ServerSetup, path string) error {
	f := setupFile{
		Version:         setupFileVersion,
		ServerIdentity:  base64.StdEncoding.EncodeToString(setup.ServerIdentity),
		ServerSecretKey: base64.StdEncoding.EncodeToString(setup.ServerSecretKey.Encode()),
		ServerPublicKey: base64.StdEncoding.EncodeToString(setup.ServerPublicKey.Encode()),
		OPRFSeed:        base64.StdEncoding.EncodeToString(setup.OPRFSeed),
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("server: marshal setup: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("server: write setup %s: %w", path, err)
	}

	return nil
}

// LoadSetup reads and decodes a ServerSetup previously written by
// SaveSetup, rejecting any version it does not recognize.
func LoadSetup(path string) (*opaque.ServerSetup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server: read setup %s: %w", path, err)
	}

	var f setupFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("server: parse setup %s: %w", path, err)
	}

	if f.Version != setupFileVersion {
		return nil, fmt.Errorf("server: unsupported setup file version %d", f.Version)
	}

	g := opaque.DefaultSuite.Group

	identity, err := base64.StdEncoding.DecodeString(f.ServerIdentity)
	if err != nil {
		return nil, fmt.Errorf("server: decode server identity: %w", err)
	}

	skBytes, err := base64.StdEncoding.DecodeString(f.ServerSecretKey)
	if err != nil {
		return nil, fmt.Errorf("server: decode server secret key: %w", err)
	}
	sk, err := curve.DecodeScalar(g, skBytes)
	if err != nil {
		return nil, fmt.Errorf("server: decode server secret key: %w", err)
	}

	pkBytes, err := base64.StdEncoding.DecodeString(f.ServerPublicKey)
	if err != nil {
		return nil, fmt.Errorf("server: decode server public key: %w", err)
	}
	pk, err := curve.DecodeElement(g, pkBytes)
	if err != nil {
		return nil, fmt.Errorf("server: decode server public key: %w", err)
	}

	seed, err := base64.StdEncoding.DecodeString(f.OPRFSeed)
	if err != nil {
		return nil, fmt.Errorf("server: decode oprf seed: %w", err)
	}

	return &opaque.ServerSetup{
		Suite:           opaque.DefaultSuite,
		ServerIdentity:  identity,
		ServerSecretKey: sk,
		ServerPublicKey: pk,
		OPRFSeed:        seed,
	}, nil
}

// UserStore holds every registered user's ClientRecord and serializes
// registration per-username via a sync.Map of mutexes, so two concurrent
// registration attempts for the same username never interleave (spec.md
// §5's "registration serialized externally per-username").
type UserStore struct {
	mu      sync.RWMutex
	records map[string]*opaque.ClientRecord
	locks   sync.Map // username -> *sync.Mutex
}

// NewUserStore returns an empty store.
func NewUserStore() *UserStore {
	return &UserStore{records: make(map[string]*opaque.ClientRecord)}
}

func (u *UserStore) lockFor(username string) *sync.Mutex {
	l, _ := u.locks.LoadOrStore(username, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// WithRegistrationLock runs fn while holding username's registration lock.
// Engine.FinishRegistration runs under it, so two uploads for the same user
// never interleave; Engine.StartRegistration does not take it.
func (u *UserStore) WithRegistrationLock(username string, fn func() error) error {
	l := u.lockFor(username)
	l.Lock()
	defer l.Unlock()

	return fn()
}

// Get returns the record for username, if registered.
func (u *UserStore) Get(username string) (*opaque.ClientRecord, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	r, ok := u.records[username]
	return r, ok
}

// Put stores or replaces username's record.
func (u *UserStore) Put(username string, record *opaque.ClientRecord) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.records[username] = record
}

// CredentialIdentifier derives the salt for the per-user OPRF key from
// username ("cred-id:" + username). Engine.FinishRegistration stores it on
// the ClientRecord, and login reads it back from the stored record.
func CredentialIdentifier(username string) []byte {
	return []byte("cred-id:" + username)
}
