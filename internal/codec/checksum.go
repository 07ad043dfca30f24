package codec

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"fibermap/internal/domain"
)

const checksumPrefix = "blake2b-256:"

// Checksum returns the BLAKE2b-256 digest of the document's canonical JSON
// form with the checksum field blanked. The digest does not depend on
// which codec later writes the document.
func Checksum(doc *Document) (string, error) {
	clone := *doc
	clone.Checksum = ""
	payload, err := json.Marshal(&clone)
	if err != nil {
		return "", fmt.Errorf("failed to encode document for checksum: %w", err)
	}
	sum := blake2b.Sum256(payload)
	return checksumPrefix + hex.EncodeToString(sum[:]), nil
}

// VerifyChecksum compares the stored checksum with a fresh one. Documents
// without a checksum, such as hand-written seed files, pass.
func VerifyChecksum(doc *Document) error {
	if doc.Checksum == "" {
		return nil
	}
	want, err := Checksum(doc)
	if err != nil {
		return err
	}
	if doc.Checksum != want {
		return fmt.Errorf("%w: checksum mismatch", domain.ErrMalformedDocument)
	}
	return nil
}
