package filter

import (
	"regexp"
	"strings"
)

// compiledPattern is a glob compiled to a regular expression.
type compiledPattern struct {
	re       *regexp.Regexp
	original string
	dirOnly  bool // trailing "/"
}

// compilePattern compiles an rsync-style glob. A leading "/" or any inner
// "/" anchors the pattern at the source root; otherwise it matches the
// basename or any trailing path suffix.
func compilePattern(pattern string) (*compiledPattern, error) {
	cp := &compiledPattern{original: pattern}

	body, dirOnly := strings.CutSuffix(pattern, "/")
	cp.dirOnly = dirOnly

	anchored := strings.Contains(body, "/")
	body = strings.TrimPrefix(body, "/")

	expr := globToRegex(body)
	if anchored {
		expr = "^" + expr + "$"
	} else {
		expr = "(^|/)" + expr + "$"
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	cp.re = re
	return cp, nil
}

func (cp *compiledPattern) match(relPath string, isDir bool) bool {
	if cp.dirOnly && !isDir {
		return false
	}
	return cp.re.MatchString(relPath)
}

// globToRegex translates glob syntax: "*" stays within a path segment,
// "**" crosses segments, "?" is one non-slash byte and "[...]" / "[!...]"
// are character classes.
//
//nolint:gocyclo,revive // cognitive-complexity: character-by-character glob parser
func globToRegex(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); {
		c := glob[i]
		switch {
		case strings.HasPrefix(glob[i:], "**/"):
			b.WriteString("(.*/)?")
			i += 3
		case strings.HasPrefix(glob[i:], "**"):
			b.WriteString(".*")
			i += 2
		case c == '*':
			b.WriteString("[^/]*")
			i++
		case c == '?':
			b.WriteString("[^/]")
			i++
		case c == '[':
			end := classEnd(glob, i)
			if end < 0 {
				b.WriteString(`\[`)
				i++
				continue
			}
			class := glob[i+1 : end]
			if rest, ok := strings.CutPrefix(class, "!"); ok {
				class = "^" + rest
			}
			b.WriteString("[" + class + "]")
			i = end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return b.String()
}

// classEnd returns the index of the "]" closing the class opened at
// glob[start], or -1. A "]" right after "[" or "[!" is a literal member.
func classEnd(glob string, start int) int {
	j := start + 1
	if j < len(glob) && glob[j] == '!' {
		j++
	}
	if j < len(glob) && glob[j] == ']' {
		j++
	}
	for j < len(glob) && glob[j] != ']' {
		j++
	}
	if j >= len(glob) {
		return -1
	}
	return j
}
