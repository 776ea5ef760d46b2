package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainRecord separates record identities from any other hash the
// module may compute. The version suffix leaves room for changing the
// canonical form.
const DomainRecord = "pulse/record/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RecordKey returns the content-derived identity of a record: the hash of
// its full canonical serialization. Records that serialize identically
// share a key.
func RecordKey(r Record) (string, error) {
	canonical, err := MarshalCanonical(r)
	if err != nil {
		return "", fmt.Errorf("RecordKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}
