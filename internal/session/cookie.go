package session

import (
	"net/url"
	"strings"
)

// parseEntry returns the decoded value of name within raw, which is a list
// of "key=value" pairs separated by ';'. Leading whitespace of each pair is
// ignored. ok is false when the key is absent or its value cannot be
// percent-decoded. A present key with an empty value yields ("", true).
func parseEntry(raw, name string) (value string, ok bool) {
	value, found, err := decodeEntry(raw, name)
	if err != nil || !found {
		return "", false
	}
	return value, true
}

// decodeEntry is parseEntry with the decoding failure preserved. found
// reports whether the key exists at all.
func decodeEntry(raw, name string) (value string, found bool, err error) {
	encoded, found := lookupEntry(raw, name)
	if !found {
		return "", false, nil
	}
	decoded, err := url.PathUnescape(encoded)
	if err != nil {
		return "", true, err
	}
	return decoded, true, nil
}

// lookupEntry returns the raw, still-encoded value of the first pair
// named name.
func lookupEntry(raw, name string) (string, bool) {
	prefix := name + "="
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimLeft(pair, " \t")
		if strings.HasPrefix(pair, prefix) {
			return pair[len(prefix):], true
		}
	}
	return "", false
}

// formatEntries renders entries in slot Read format.
func formatEntries(pairs [][2]string) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p[0]+"="+p[1])
	}
	return strings.Join(parts, "; ")
}
