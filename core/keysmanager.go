package core

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	bip39 "github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/scrypt"
)

// ed25519KeyFromSeed derives an Ed25519 keypair from the first
// ed25519.SeedSize bytes of a BIP-39 seed. There is only one key per
// name, so the seed feeds ed25519 directly with no HMAC derivation tree.
func ed25519KeyFromSeed(seed []byte) (priv [64]byte, pub PubKey) {
	key := ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])
	copy(priv[:], key)
	copy(pub[:], key.Public().(ed25519.PublicKey))
	return priv, pub
}

// KeysManager is the client-side keypair collaborator: given a name, it
// produces or loads an encrypted keypair. Used by clients, not by the
// evaluator, which never imports this file.
type KeysManager interface {
	// CreateKeys generates and persists a new keypair under name,
	// encrypted with passphrase. It returns false without error if keys
	// for name already exist.
	CreateKeys(name, passphrase string) (bool, error)
	// LoadKeys decrypts and returns the keypair stored under name, or
	// ok=false if no such keypair exists.
	LoadKeys(name, passphrase string) (kp KeyPair, ok bool, err error)
}

// KeyPair is an Ed25519 signing keypair: a single "one keypair per name"
// shape, collapsed from a full HD-wallet derivation tree. The mnemonic it
// was derived from stays in the encrypted keystore and is not returned.
type KeyPair struct {
	PubKey  PubKey
	PrivKey [64]byte // Ed25519 seed+public, as returned by ed25519.NewKeyFromSeed
}

// FileKeysManager stores one encrypted keystore file per name under dir.
// Key material is encrypted at rest; the plaintext key exists only in
// memory after LoadKeys.
type FileKeysManager struct {
	dir string
}

// NewFileKeysManager opens (creating if absent) dir as a keystore root.
func NewFileKeysManager(dir string) (*FileKeysManager, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &FileKeysManager{dir: dir}, nil
}

// keystoreFile is the on-disk encrypted keystore envelope: a scrypt salt,
// an AES-GCM nonce, and the ciphertext of a marshaled keystorePayload.
type keystoreFile struct {
	Salt  string `json:"salt"`
	Nonce string `json:"nonce"`
	Data  string `json:"data"`
}

type keystorePayload struct {
	Mnemonic string `json:"mnemonic"`
	PrivKey  string `json:"priv_key"`
}

func (m *FileKeysManager) path(name string) string {
	return filepath.Join(m.dir, name+".keystore.json")
}

// CreateKeys generates a fresh 256-bit-entropy BIP-39 mnemonic, derives
// a single Ed25519 keypair from its seed, and writes it encrypted under
// name. Returns false, nil if a keystore for name already exists — no
// keys are regenerated or overwritten.
func (m *FileKeysManager) CreateKeys(name, passphrase string) (bool, error) {
	if _, err := os.Stat(m.path(name)); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat keystore: %w", err)
	}

	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return false, fmt.Errorf("entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return false, fmt.Errorf("mnemonic: %w", err)
	}
	seed := bip39.NewSeed(mnemonic, "")
	priv, _ := ed25519KeyFromSeed(seed)

	payload := keystorePayload{
		Mnemonic: mnemonic,
		PrivKey:  hex.EncodeToString(priv[:]),
	}
	if err := m.writeEncrypted(name, passphrase, payload); err != nil {
		return false, err
	}
	return true, nil
}

// LoadKeys decrypts the keystore under name with passphrase and returns
// its KeyPair. ok is false (with a nil error) if no keystore exists for
// name.
func (m *FileKeysManager) LoadKeys(name, passphrase string) (KeyPair, bool, error) {
	data, err := os.ReadFile(m.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return KeyPair{}, false, nil
	}
	if err != nil {
		return KeyPair{}, false, fmt.Errorf("read keystore: %w", err)
	}
	var ks keystoreFile
	if err := json.Unmarshal(data, &ks); err != nil {
		return KeyPair{}, false, fmt.Errorf("decode keystore: %w", err)
	}
	plain, err := decryptKeystore(ks, passphrase)
	if err != nil {
		return KeyPair{}, false, err
	}
	var payload keystorePayload
	if err := json.Unmarshal(plain, &payload); err != nil {
		return KeyPair{}, false, fmt.Errorf("decode keystore payload: %w", err)
	}
	privBytes, err := hex.DecodeString(payload.PrivKey)
	if err != nil || len(privBytes) != 64 {
		return KeyPair{}, false, fmt.Errorf("%w: malformed stored private key", ErrInternal)
	}
	var kp KeyPair
	copy(kp.PrivKey[:], privBytes)
	copy(kp.PubKey[:], privBytes[32:])
	return kp, true, nil
}

func (m *FileKeysManager) writeEncrypted(name, passphrase string, payload keystorePayload) error {
	plain, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal keystore payload: %w", err)
	}
	salt := make([]byte, 16)
	if _, err := crand.Read(salt); err != nil {
		return fmt.Errorf("salt: %w", err)
	}
	key, err := scrypt.Key([]byte(passphrase), salt, 1<<15, 8, 1, 32)
	if err != nil {
		return fmt.Errorf("scrypt: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("aes: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := crand.Read(nonce); err != nil {
		return fmt.Errorf("nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, plain, nil)

	ks := keystoreFile{
		Salt:  hex.EncodeToString(salt),
		Nonce: hex.EncodeToString(nonce),
		Data:  hex.EncodeToString(ciphertext),
	}
	out, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal keystore: %w", err)
	}
	return os.WriteFile(m.path(name), out, 0o600)
}

func decryptKeystore(ks keystoreFile, passphrase string) ([]byte, error) {
	salt, err := hex.DecodeString(ks.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed keystore salt", ErrInternal)
	}
	nonce, err := hex.DecodeString(ks.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed keystore nonce", ErrInternal)
	}
	ciphertext, err := hex.DecodeString(ks.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed keystore data", ErrInternal)
	}
	key, err := scrypt.Key([]byte(passphrase), salt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("scrypt: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.New("wrong passphrase or corrupted keystore")
	}
	return plain, nil
}
