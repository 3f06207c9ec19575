// Package secrets decrypts SOPS-encrypted blueprints before conversion.
package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/getsops/sops/v3/decrypt"
	"gopkg.in/yaml.v3"
)

// Mode selects when decryption runs.
type Mode string

const (
	// ModeAuto decrypts only documents carrying SOPS metadata.
	ModeAuto Mode = "auto"
	// ModeAlways requires SOPS metadata and decrypts.
	ModeAlways Mode = "always"
	// ModeNever passes documents through untouched.
	ModeNever Mode = "never"
)

// ErrNotEncrypted is returned in ModeAlways for a document without SOPS metadata.
var ErrNotEncrypted = errors.New("document is not SOPS-encrypted")

// ParseMode parses a mode name. The empty string is ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeAlways, ModeNever:
		return m, nil
	default:
		return "", fmt.Errorf("unknown decrypt mode %q (want auto, always or never)", s)
	}
}

// IsEncrypted reports whether data is a YAML mapping with a top-level sops
// section holding a mac.
func IsEncrypted(data []byte) bool {
	var doc struct {
		SOPS map[string]any `yaml:"sops"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return false
	}
	_, ok := doc.SOPS["mac"]
	return ok
}

// Decryptor decrypts YAML documents with SOPS.
type Decryptor struct {
	decrypt func(data []byte, format string) ([]byte, error)
}

// NewDecryptor creates a Decryptor backed by the SOPS key services
// available to the process (age, PGP, cloud KMS).
func NewDecryptor() *Decryptor {
	return &Decryptor{decrypt: decrypt.Data}
}

// Decrypt returns the plaintext of data according to mode.
func (d *Decryptor) Decrypt(data []byte, mode Mode) ([]byte, error) {
	switch mode {
	case ModeNever:
		return data, nil
	case ModeAlways:
		if !IsEncrypted(data) {
			return nil, ErrNotEncrypted
		}
	default:
		if !IsEncrypted(data) {
			return data, nil
		}
	}

	plain, err := d.decrypt(data, "yaml")
	if err != nil {
		return nil, fmt.Errorf("sops decrypt: %w", err)
	}
	return plain, nil
}
