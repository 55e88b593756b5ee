package blacklist

import (
	"strings"

	"blockwatch/internal/domain"
)

// ClassifyLine returns the address in the first column of a feed line.
// Blank lines, comments and lines whose first token is not an address yield false.
func ClassifyLine(line string) (domain.Address, bool) {
	if line == "" || strings.HasPrefix(line, "#") {
		return domain.Address{}, false
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return domain.Address{}, false
	}

	address, err := domain.ParseAddress(fields[0])
	if err != nil {
		return domain.Address{}, false
	}
	return address, true
}
