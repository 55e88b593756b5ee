package blacklist

import (
	"iter"
	"strings"
)

// Lines yields the lines of content split on \n, \r\n or \r. A trailing
// terminator does not produce an empty final line.
func Lines(content string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for len(content) > 0 {
			i := strings.IndexAny(content, "\r\n")
			if i < 0 {
				yield(content)
				return
			}
			line := content[:i]
			next := i + 1
			if content[i] == '\r' && next < len(content) && content[next] == '\n' {
				next++
			}
			if !yield(line) {
				return
			}
			content = content[next:]
		}
	}
}

func SplitLines(content string) []string {
	var out []string
	for line := range Lines(content) {
		out = append(out, line)
	}
	return out
}
