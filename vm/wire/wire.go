package wire

import (
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode encodes canonically so that equal units give equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes a Unit to CBOR bytes.
func Marshal(u *Unit) ([]byte, error) {
	return cborEncMode.Marshal(u)
}

// Unmarshal deserializes a Unit from CBOR bytes.
func Unmarshal(data []byte) (*Unit, error) {
	var u Unit
	if err := cbor.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("wire: unmarshal unit: %w", err)
	}
	if u.Version != FormatVersion {
		return nil, fmt.Errorf("wire: unsupported unit version %d (want %d)", u.Version, FormatVersion)
	}
	return &u, nil
}

// Digest returns the SHA-256 of the canonical encoding of u.
func Digest(u *Unit) ([32]byte, error) {
	data, err := Marshal(u)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

// ReadFile loads a Unit from a .gbc file.
func ReadFile(path string) (*Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wire: read %s: %w", path, err)
	}
	u, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return u, nil
}

// WriteFile writes u to path.
func WriteFile(path string, u *Unit) error {
	data, err := Marshal(u)
	if err != nil {
		return fmt.Errorf("wire: marshal unit: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("wire: write %s: %w", path, err)
	}
	return nil
}
