package filter

import (
	"fmt"

	"github.com/zeebo/xxh3"

	"sedump/internal/schema"
)

// Dedup drops rows whose key columns repeat an earlier row's key within one
// load. The store's UNIQUE/PK constraints remain the backstop; deduplicating
// up front avoids churning the duplicate path on re-merged dump files.
//
// Keys are built from the stringified key values separated by NUL (nil maps
// to a lone NUL, matching no real value) and folded through xxh3, so the
// seen-set holds one uint64 per distinct key instead of the key text itself.
func Dedup(t *schema.Table, keyColumns ...string) Func {
	idx := make([]int, 0, len(keyColumns))
	for _, c := range keyColumns {
		if i := t.Col(c); i >= 0 {
			idx = append(idx, i)
		}
	}
	seen := make(map[uint64]struct{})

	return func(row schema.Row) schema.Row {
		if len(idx) == 0 {
			return row
		}
		var key []byte
		for _, i := range idx {
			if row[i] == nil {
				key = append(key, 0)
			} else {
				key = fmt.Appendf(key, "%v", row[i])
			}
			key = append(key, 0)
		}
		h := xxh3.Hash(key)
		if _, dup := seen[h]; dup {
			return nil
		}
		seen[h] = struct{}{}
		return row
	}
}
