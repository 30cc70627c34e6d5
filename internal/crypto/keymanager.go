// Package crypto resolves the service wallet key and signs ledger
// transactions with it.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32
	keyFileVersion   = 1
)

// keyFile is the on-disk format for an encrypted private key. Binary fields
// are base64 standard encoding.
type keyFile struct {
	Version    int    `json:"version"`
	Address    string `json:"address"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeySource tells LoadKey where the wallet key lives. A raw key wins over an
// encrypted file.
type KeySource struct {
	RawPrivateKey    string
	EncryptedKeyPath string
	KeyPassword      string
}

func gcmFor(password string, salt []byte) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}
	return gcm, nil
}

// EncryptKey seals a hex-encoded secp256k1 key under password with
// PBKDF2-SHA256 and AES-256-GCM and returns the JSON key file contents.
func EncryptKey(privateKeyHex, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	pk, err := ParseKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}
	gcm, err := gcmFor(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	return json.MarshalIndent(keyFile{
		Version:    keyFileVersion,
		Address:    ethcrypto.PubkeyToAddress(pk.PublicKey).Hex(),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, ethcrypto.FromECDSA(pk), nil)),
	}, "", "  ")
}

// DecryptKey opens a key file produced by EncryptKey.
func DecryptKey(data []byte, password string) (*ecdsa.PrivateKey, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}

	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("crypto: parsing key file: %w", err)
	}
	if kf.Version != keyFileVersion {
		return nil, fmt.Errorf("crypto: unsupported key file version %d", kf.Version)
	}

	var salt, nonce, sealed []byte
	for _, f := range []struct {
		name string
		in   string
		out  *[]byte
	}{
		{"salt", kf.Salt, &salt},
		{"nonce", kf.Nonce, &nonce},
		{"ciphertext", kf.Ciphertext, &sealed},
	} {
		b, err := base64.StdEncoding.DecodeString(f.in)
		if err != nil {
			return nil, fmt.Errorf("crypto: decoding %s: %w", f.name, err)
		}
		*f.out = b
	}

	gcm, err := gcmFor(password, salt)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: decryption failed (wrong password?): %w", err)
	}
	pk, err := ethcrypto.ToECDSA(plain)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypted key is invalid: %w", err)
	}
	if kf.Address != "" && !strings.EqualFold(kf.Address, ethcrypto.PubkeyToAddress(pk.PublicKey).Hex()) {
		return nil, errors.New("crypto: key file address does not match decrypted key")
	}
	return pk, nil
}

// ParseKey decodes a hex secp256k1 key with or without a 0x prefix.
func ParseKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	keyHex := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if _, err := hex.DecodeString(keyHex); err != nil {
		return nil, fmt.Errorf("crypto: private key is not valid hex: %w", err)
	}
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid private key: %w", err)
	}
	return pk, nil
}

// LoadKey resolves the wallet key from src.
func LoadKey(src KeySource) (*ecdsa.PrivateKey, error) {
	if src.RawPrivateKey != "" {
		return ParseKey(src.RawPrivateKey)
	}
	if src.EncryptedKeyPath != "" {
		data, err := os.ReadFile(src.EncryptedKeyPath)
		if err != nil {
			return nil, fmt.Errorf("crypto: reading key file: %w", err)
		}
		return DecryptKey(data, src.KeyPassword)
	}
	return nil, errors.New("crypto: no private key source configured")
}
