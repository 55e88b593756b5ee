package blacklist

import (
	"iter"

	"blockwatch/internal/domain"
)

// Diff yields every address in newContent that does not appear in oldContent.
// Repeats within newContent are yielded once per occurrence. The sequence holds
// no state between iterations and can be ranged over any number of times.
func Diff(oldContent, newContent string) iter.Seq[domain.Address] {
	return func(yield func(domain.Address) bool) {
		seen := parseAddresses(oldContent)

		for line := range Lines(newContent) {
			address, ok := ClassifyLine(line)
			if !ok {
				continue
			}
			if _, exists := seen[address]; exists {
				continue
			}
			if !yield(address) {
				return
			}
		}
	}
}

func parseAddresses(content string) map[domain.Address]struct{} {
	out := make(map[domain.Address]struct{})
	for line := range Lines(content) {
		if address, ok := ClassifyLine(line); ok {
			out[address] = struct{}{}
		}
	}
	return out
}
