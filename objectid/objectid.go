package objectid

import (
	"crypto/sha1" //nolint:gosec // git object ids are sha1
	"encoding/hex"
	"strconv"
	"strings"
)

// Blob returns the git blob id of content, the same
// value `git hash-object` prints for it.
func Blob(content []byte) string {
	ha := sha1.New() //nolint:gosec // git object ids are sha1

	ha.Write([]byte("blob " + strconv.Itoa(len(content)) + "\x00"))
	ha.Write(content)

	return hex.EncodeToString(ha.Sum(nil))
}

// VerifyBlob reports whether id is the git blob id of
// content. Comparison ignores case.
func VerifyBlob(id string, content []byte) bool {
	return strings.EqualFold(id, Blob(content))
}
