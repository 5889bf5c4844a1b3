package filter

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// AddRule parses a single rule line: "+ PATTERN" includes, "- PATTERN" or
// a bare PATTERN excludes. Blank lines and "#" comments are ignored.
func (c *Chain) AddRule(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	if rest, ok := strings.CutPrefix(line, "+ "); ok {
		return c.AddInclude(strings.TrimSpace(rest))
	}
	if rest, ok := strings.CutPrefix(line, "- "); ok {
		return c.AddExclude(strings.TrimSpace(rest))
	}
	return c.AddExclude(line)
}

// LoadFile reads one rule per line from path (see AddRule).
func (c *Chain) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open filter file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		if err := c.AddRule(sc.Text()); err != nil {
			return fmt.Errorf("filter file %s line %d: %w", path, lineNum, err)
		}
	}
	return sc.Err()
}
