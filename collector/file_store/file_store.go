package file_store

import (
	"context"
	"strings"

	"github.com/Luismorlan/zsxqintel/utils"
)

// Shared Func type for file stores
type CustomizeFileNameFuncType func(name string) string

// CollectedFileStore archives raw payloads fetched from the community API so
// a decoding problem can be replayed later.
type CollectedFileStore interface {
	Store(ctx context.Context, name string, body []byte) (key string, err error)
	GetUrlFromKey(key string) string
	CleanUp()
}

// RawPayloadFileName is the default naming: payloads are grouped by the first
// path segment of name and keyed by the md5 of the full name.
func RawPayloadFileName(name string) string {
	digest, err := utils.TextToMd5Hash(name)
	if err != nil {
		return ""
	}
	prefix := "misc"
	if idx := strings.Index(name, "/"); idx > 0 {
		prefix = name[:idx]
	}
	return prefix + "/" + digest + ".json"
}
