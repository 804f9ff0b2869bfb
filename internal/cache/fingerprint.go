package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gandalf-mcp/gandalf/internal/conversations"
)

// StoreStat pins one source store's identity into the cache key so an
// IDE writing to its store invalidates dependent entries.
type StoreStat struct {
	Path    string
	Size    int64
	MtimeNS int64
}

// StatStores stats every store path. Missing stores are recorded with
// zero size and mtime: absence is part of the key too.
func StatStores(paths []string) []StoreStat {
	stats := make([]StoreStat, 0, len(paths))
	for _, p := range paths {
		s := StoreStat{Path: p}
		if info, err := os.Stat(p); err == nil {
			s.Size = info.Size()
			s.MtimeNS = info.ModTime().UnixNano()
		}
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Path < stats[j].Path })
	return stats
}

// Fingerprint derives the cache key: SHA-256 hex over the ordered
// source list, the normalized filter, the project root, and each
// store's identity tuple. The filter's Now field is excluded so calls
// made moments apart share a key.
func Fingerprint(srcs []string, f conversations.Filter, root string, stores []StoreStat) string {
	h := sha256.New()

	sorted := append([]string(nil), srcs...)
	sort.Strings(sorted)
	fmt.Fprintf(h, "sources=%s\n", strings.Join(sorted, ","))

	types := append([]string(nil), f.Types...)
	sort.Strings(types)
	fmt.Fprintf(h, "filter=fast:%t;days:%d;limit:%d;query:%s;content:%t;types:%s\n",
		f.FastMode, f.DaysLookback, f.Limit,
		strings.ToLower(strings.TrimSpace(f.Query)), f.IncludeContent,
		strings.Join(types, ","))

	fmt.Fprintf(h, "root=%s\n", root)
	for _, s := range stores {
		fmt.Fprintf(h, "store=%s;%d;%d\n", s.Path, s.Size, s.MtimeNS)
	}

	return hex.EncodeToString(h.Sum(nil))
}
