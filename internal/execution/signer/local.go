package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	EnvPrivateKey           = "SENTINEL_PRIVATE_KEY"
	EnvPrivateKeyFile       = "SENTINEL_PRIVATE_KEY_FILE"
	EnvKeystorePath         = "SENTINEL_KEYSTORE_PATH"
	EnvKeystorePassword     = "SENTINEL_KEYSTORE_PASSWORD"
	EnvKeystorePasswordFile = "SENTINEL_KEYSTORE_PASSWORD_FILE"

	KeySourceAuto     = "auto"
	KeySourceEnv      = "env"
	KeySourceFile     = "file"
	KeySourceKeystore = "keystore"

	defaultPrivateKeyRelativePath = "sentinel/key.hex"
	defaultPrivateKeyHintPath     = "~/.config/sentinel/key.hex"
)

type LocalSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	source     string
}

func (s *LocalSigner) Address() common.Address {
	return s.address
}

// Source names where the key was loaded from: env, file or keystore.
func (s *LocalSigner) Source() string {
	return s.source
}

func (s *LocalSigner) SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	if s == nil || s.privateKey == nil {
		return nil, errors.New("local signer is not initialized")
	}
	signer := types.LatestSignerForChainID(chainID)
	return types.SignTx(tx, signer, s.privateKey)
}

// NewLocalSignerFromEnv loads the wallet key named by source from the
// SENTINEL_* environment or the default key file.
func NewLocalSignerFromEnv(source string) (*LocalSigner, error) {
	return NewLocalSignerFromInputs(source, "")
}

// NewLocalSignerFromInputs is NewLocalSignerFromEnv with an explicit key that
// wins over every other source.
func NewLocalSignerFromInputs(source, privateKeyOverride string) (*LocalSigner, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		source = KeySourceAuto
	}
	cfg := configFromEnv()
	switch source {
	case KeySourceAuto:
	case KeySourceEnv:
		cfg = LocalSignerConfig{PrivateKeyHex: cfg.PrivateKeyHex}
	case KeySourceFile:
		cfg = LocalSignerConfig{PrivateKeyFile: cfg.PrivateKeyFile}
	case KeySourceKeystore:
		cfg.PrivateKeyHex, cfg.PrivateKeyFile = "", ""
	default:
		return nil, fmt.Errorf("unsupported key source %q (expected %s|%s|%s|%s)", source, KeySourceAuto, KeySourceEnv, KeySourceFile, KeySourceKeystore)
	}
	if override := strings.TrimSpace(privateKeyOverride); override != "" {
		cfg = LocalSignerConfig{PrivateKeyHex: override}
	}
	return NewLocalSigner(cfg)
}

func configFromEnv() LocalSignerConfig {
	cfg := LocalSignerConfig{
		PrivateKeyHex:        strings.TrimSpace(os.Getenv(EnvPrivateKey)),
		PrivateKeyFile:       strings.TrimSpace(os.Getenv(EnvPrivateKeyFile)),
		KeystorePath:         strings.TrimSpace(os.Getenv(EnvKeystorePath)),
		KeystorePassword:     strings.TrimSpace(os.Getenv(EnvKeystorePassword)),
		KeystorePasswordFile: strings.TrimSpace(os.Getenv(EnvKeystorePasswordFile)),
	}
	if cfg.PrivateKeyFile == "" {
		cfg.PrivateKeyFile = discoverDefaultPrivateKeyFile()
	}
	return cfg
}

// LocalSignerConfig names the key material to load. The first non-empty of
// PrivateKeyHex, PrivateKeyFile and KeystorePath is used.
type LocalSignerConfig struct {
	PrivateKeyHex        string
	PrivateKeyFile       string
	KeystorePath         string
	KeystorePassword     string
	KeystorePasswordFile string
}

func NewLocalSigner(cfg LocalSignerConfig) (*LocalSigner, error) {
	pk, source, err := loadPrivateKey(cfg)
	if err != nil {
		return nil, err
	}
	return &LocalSigner{privateKey: pk, address: crypto.PubkeyToAddress(pk.PublicKey), source: source}, nil
}

func loadPrivateKey(cfg LocalSignerConfig) (*ecdsa.PrivateKey, string, error) {
	switch {
	case strings.TrimSpace(cfg.PrivateKeyHex) != "":
		pk, err := parseHexKey(cfg.PrivateKeyHex)
		return pk, KeySourceEnv, err
	case strings.TrimSpace(cfg.PrivateKeyFile) != "":
		buf, err := readSecretFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, "", fmt.Errorf("read private key file: %w", err)
		}
		pk, err := parseHexKey(string(buf))
		return pk, KeySourceFile, err
	case strings.TrimSpace(cfg.KeystorePath) != "":
		pk, err := decryptKeystore(cfg)
		return pk, KeySourceKeystore, err
	}
	return nil, "", fmt.Errorf("%w: set %s, write a key to %s, set %s, or pass wallet.address in config", ErrNoWallet, EnvPrivateKey, defaultPrivateKeyHintPath, EnvKeystorePath)
}

// readSecretFile refuses key files that group or other users can read.
func readSecretFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return nil, fmt.Errorf("%s is accessible by other users (mode %04o); run chmod 600", path, perm)
	}
	return os.ReadFile(path)
}

func decryptKeystore(cfg LocalSignerConfig) (*ecdsa.PrivateKey, error) {
	password := cfg.KeystorePassword
	if strings.TrimSpace(password) == "" && strings.TrimSpace(cfg.KeystorePasswordFile) != "" {
		buf, err := os.ReadFile(cfg.KeystorePasswordFile)
		if err != nil {
			return nil, fmt.Errorf("read keystore password file: %w", err)
		}
		password = strings.TrimSpace(string(buf))
	}
	if strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("keystore password is required")
	}
	buf, err := os.ReadFile(cfg.KeystorePath)
	if err != nil {
		return nil, fmt.Errorf("read keystore file: %w", err)
	}
	key, err := keystore.DecryptKey(buf, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore: %w", err)
	}
	return key.PrivateKey, nil
}

func parseHexKey(raw string) (*ecdsa.PrivateKey, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "0x")
	if clean == "" {
		return nil, fmt.Errorf("empty private key")
	}
	pk, err := crypto.HexToECDSA(clean)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return pk, nil
}

func defaultPrivateKeyPath() string {
	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, defaultPrivateKeyRelativePath)
}

func discoverDefaultPrivateKeyFile() string {
	path := defaultPrivateKeyPath()
	if path == "" {
		return ""
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	return path
}
