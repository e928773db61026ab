// Package fingerprint computes sha256 content hashes of catalog objects and fingerprints of whole
// structures, used to detect that a database changed after a plan was made.
package fingerprint

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dbgate/dbdeploy/model"
)

// ErrFingerprintMismatch is returned by Compare when the structure changed.
var ErrFingerprintMismatch = errors.New("structure fingerprint mismatch")

// StructureFingerprint represents a fingerprint of a database structure
type StructureFingerprint struct {
	Hash string `json:"hash"` // SHA256 of the normalized structure
}

// Compute generates a fingerprint for the given structure. Pairing ids, object ids, content
// hashes and preloaded data do not take part.
func Compute(db model.DatabaseInfo) (*StructureFingerprint, error) {
	normalized := model.ClearPairingIDs(db)
	for i := range normalized.Tables {
		t := &normalized.Tables[i]
		t.ObjectID, t.ContentHash = "", ""
		t.PreloadedRows, t.PreloadedRowsKey, t.PreloadedRowsInsertOnly = nil, nil, nil
	}
	objects := normalized.AllSQLObjects()
	for i := range objects {
		objects[i].ObjectID, objects[i].ContentHash = "", ""
	}
	normalized = normalized.WithSQLObjects(objects)

	hash, err := hashObject(normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to compute structure hash: %w", err)
	}
	return &StructureFingerprint{Hash: hash}, nil
}

// HashString returns the hex sha256 of s, used as a catalog object content hash.
func HashString(s string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(s)))
}

// hashObject computes a SHA256 hash of any object
func hashObject(obj any) (string, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}

// Compare returns ErrFingerprintMismatch, with short previews of both hashes, when the
// fingerprints differ.
func Compare(expected, actual *StructureFingerprint) error {
	if expected.Hash == actual.Hash {
		return nil
	}
	return fmt.Errorf("%w - expected: %s, actual: %s", ErrFingerprintMismatch, preview(expected.Hash), preview(actual.Hash))
}

func preview(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}

// String returns a human-readable representation of the fingerprint
func (f *StructureFingerprint) String() string {
	if len(f.Hash) >= 8 {
		return fmt.Sprintf("Structure fingerprint: %s", f.Hash[:8])
	}
	return fmt.Sprintf("Structure fingerprint: %s", f.Hash)
}
