package engine

import (
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// CollisionPolicy decides what happens when two source files in one run map
// to the same destination (same name, same bucket).
type CollisionPolicy int

const (
	// CollisionRename keeps the first file's name and gives later ones a
	// suffix derived from their source path.
	CollisionRename CollisionPolicy = iota
	// CollisionOverwrite lets the last writer win.
	CollisionOverwrite
	// CollisionSkip keeps the first file and skips later ones.
	CollisionSkip
)

var collisionNames = map[CollisionPolicy]string{
	CollisionRename:    "rename",
	CollisionOverwrite: "overwrite",
	CollisionSkip:      "skip",
}

func (p CollisionPolicy) String() string {
	if s, ok := collisionNames[p]; ok {
		return s
	}
	return "unknown"
}

// ParseCollisionPolicy parses "rename", "overwrite" or "skip".
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	for p, name := range collisionNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown collision policy %q (want rename, overwrite or skip)", s)
}

// claimTable records which source owns each destination path in this run.
type claimTable struct {
	mu     sync.Mutex
	owners map[string]string // dst -> source rel path
	policy CollisionPolicy
}

func newClaimTable(policy CollisionPolicy) *claimTable {
	return &claimTable{owners: make(map[string]string), policy: policy}
}

// claim picks the destination for the file name in dir owned by rel. ok is
// false when the policy says to skip; owner then names the holder.
func (c *claimTable) claim(dir, name, rel string) (dst, owner string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dst = filepath.Join(dir, name)
	prev, taken := c.owners[dst]
	if !taken || prev == rel || c.policy == CollisionOverwrite {
		c.owners[dst] = rel
		return dst, "", true
	}
	if c.policy == CollisionSkip {
		return "", prev, false
	}

	stem, ext := splitExt(name)
	tag := fmt.Sprintf("%016x", xxhash.Sum64String(rel))[:8]
	candidate := filepath.Join(dir, suffixedName(stem, "-"+tag, ext))
	for n := 2; ; n++ {
		if _, used := c.owners[candidate]; !used {
			break
		}
		candidate = filepath.Join(dir, suffixedName(stem, "-"+tag+"-"+strconv.Itoa(n), ext))
	}
	c.owners[candidate] = rel
	return candidate, "", true
}

// nameMax is the longest file name most filesystems accept, in bytes.
const nameMax = 255

// suffixedName joins stem, suffix and ext, shortening stem so the result
// fits in nameMax bytes. Cuts land on a rune boundary.
func suffixedName(stem, suffix, ext string) string {
	if room := nameMax - len(suffix) - len(ext); len(stem) > room && room > 0 {
		stem = stem[:room]
		for len(stem) > 0 {
			if r, size := utf8.DecodeLastRuneInString(stem); r != utf8.RuneError || size > 1 {
				break
			}
			stem = stem[:len(stem)-1]
		}
	}
	return stem + suffix + ext
}

// reserve marks dst as owned by rel without applying the policy. Used for
// files skipped by the resume journal so new files route around them.
func (c *claimTable) reserve(dst, rel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owners[dst] = rel
}

// release gives dst back if rel still owns it, so a failed copy does not
// push later files onto suffixed names.
func (c *claimTable) release(dst, rel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owners[dst] == rel {
		delete(c.owners, dst)
	}
}
