package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/crypto/scrypt"
)

// Secrets file configuration.
const (
	SecretsFileName = "secrets.json.enc"
	saltSize        = 16
	nonceSize       = 12
	scryptN         = 32768 // 2^15
	scryptR         = 8
	scryptP         = 1
	keySize         = 32 // AES-256
)

// ErrSecretNotFound is returned when a secret is neither stored nor in the environment.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore holds decrypted secrets in memory, backed by an encrypted file.
// Lookups fall back to the environment. A nil store reads the environment only.
type SecretStore struct {
	mu      sync.RWMutex
	path    string
	secrets map[string]string
	getenv  func(string) string
}

// NewSecretStore returns an empty store for <configDir>/secrets.json.enc.
func NewSecretStore(configDir string) *SecretStore {
	return &SecretStore{
		path:    filepath.Join(configDir, SecretsFileName),
		secrets: make(map[string]string),
		getenv:  os.Getenv,
	}
}

// Path returns the encrypted file location.
func (s *SecretStore) Path() string {
	return s.path
}

// Exists reports whether the encrypted file is present.
func (s *SecretStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Unlock decrypts the secrets file into memory.
func (s *SecretStore) Unlock(password string) error {
	secrets, err := DecryptSecretsFile(s.path, password)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets = secrets
	return nil
}

// Save encrypts the in-memory secrets to the file.
func (s *SecretStore) Save(password string) error {
	s.mu.RLock()
	secretsCopy := make(map[string]string, len(s.secrets))
	for k, v := range s.secrets {
		secretsCopy[k] = v
	}
	s.mu.RUnlock()
	return EncryptSecretsFile(s.path, password, secretsCopy)
}

// Set stores a secret in memory.
func (s *SecretStore) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[name] = value
}

// Delete removes a secret from memory.
func (s *SecretStore) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, name)
}

// Get returns a secret from memory, then from the environment.
func (s *SecretStore) Get(name string) (string, error) {
	getenv := os.Getenv
	if s != nil {
		s.mu.RLock()
		value := s.secrets[name]
		s.mu.RUnlock()
		if value != "" {
			return value, nil
		}
		if s.getenv != nil {
			getenv = s.getenv
		}
	}
	if value := getenv(name); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("%w: %s not found in secrets file or environment", ErrSecretNotFound, name)
}

// First returns the first of names that resolves.
func (s *SecretStore) First(names ...string) (string, error) {
	for _, name := range names {
		if v, err := s.Get(name); err == nil {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: none of %v set", ErrSecretNotFound, names)
}

// Names returns the stored secret names (not values), sorted.
func (s *SecretStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.secrets))
	for name := range s.secrets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func deriveGCM(password, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	defer func() {
		for i := range key {
			key[i] = 0
		}
	}()

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// EncryptSecretsFile encrypts secrets to path as [salt][nonce][ciphertext+tag]
// with mode 0600.
func EncryptSecretsFile(path, password string, secrets map[string]string) error {
	passwordBytes := []byte(password)
	defer func() {
		for i := range passwordBytes {
			passwordBytes[i] = 0
		}
	}()

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	gcm, err := deriveGCM(passwordBytes, salt)
	if err != nil {
		return err
	}

	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("failed to marshal secrets: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	fileData := make([]byte, 0, saltSize+nonceSize+len(ciphertext))
	fileData = append(fileData, salt...)
	fileData = append(fileData, nonce...)
	fileData = append(fileData, ciphertext...)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create secrets directory: %w", err)
	}
	if err := os.WriteFile(path, fileData, 0o600); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	return nil
}

// DecryptSecretsFile decrypts the secrets at path. Loose permissions are
// tightened to 0600 with a warning.
func DecryptSecretsFile(path, password string) (map[string]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat secrets file: %w", err)
	}
	if info.Mode().Perm() != 0o600 {
		logger.Warn("secrets file has permissions %04o, resetting to 0600", info.Mode().Perm())
		if chmodErr := os.Chmod(path, 0o600); chmodErr != nil {
			return nil, fmt.Errorf("failed to fix file permissions: %w", chmodErr)
		}
	}

	fileData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}
	if len(fileData) < saltSize+nonceSize+16 { // 16 is the GCM tag size
		return nil, fmt.Errorf("secrets file is corrupted or invalid format (too small)")
	}

	salt := fileData[:saltSize]
	nonce := fileData[saltSize : saltSize+nonceSize]
	ciphertext := fileData[saltSize+nonceSize:]

	passwordBytes := []byte(password)
	defer func() {
		for i := range passwordBytes {
			passwordBytes[i] = 0
		}
	}()

	gcm, err := deriveGCM(passwordBytes, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed (wrong password or corrupted file)")
	}

	var secrets map[string]string
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, fmt.Errorf("failed to parse decrypted secrets: %w", err)
	}
	if secrets == nil {
		secrets = make(map[string]string)
	}
	return secrets, nil
}
