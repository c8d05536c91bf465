package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint derives a deterministic cache key from an operation name, a
// scope (usually the collection), and its normalized parameters. The scope
// sits in the key as plain text so a whole collection can be invalidated by
// prefix; the parameters are hashed. json.Marshal sorts map keys, so two
// parameter sets that differ only in field order produce the same key.
func Fingerprint(op, scope string, params interface{}) string {
	if scope == "" {
		scope = "_"
	}

	data, err := json.Marshal(params)
	if err != nil {
		// Unmarshalable params cannot be cached meaningfully; fall back
		// to a key that never collides with a real one.
		data = []byte(fmt.Sprintf("%#v", params))
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s", op, scope, data)
	digest := hex.EncodeToString(h.Sum(nil))[:32]

	return fmt.Sprintf("%s/%s/%s", op, scope, digest)
}

// ScopePrefix returns the invalidation prefix covering every cached result
// for one operation and scope.
func ScopePrefix(op, scope string) string {
	if scope == "" {
		scope = "_"
	}
	return fmt.Sprintf("%s/%s/", op, scope)
}
