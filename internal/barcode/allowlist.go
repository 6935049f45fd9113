// Package barcode loads cell barcode allow-lists.
package barcode

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/inodb/scrinvex/internal/textio"
)

// AllowList is a set of permitted barcodes. A nil AllowList permits every
// barcode.
type AllowList map[string]struct{}

// Load reads an allow-list file with one barcode per line. Only the first
// tab-separated column is used, so barcode/count tables load directly.
func Load(path string) (AllowList, error) {
	rc, err := textio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open barcode list: %w", err)
	}
	defer rc.Close()

	return Parse(rc)
}

// Parse reads an allow-list from r. Blank lines and '#' comments are skipped.
func Parse(r io.Reader) (AllowList, error) {
	list := make(AllowList)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		bc, _, _ := strings.Cut(line, "\t")
		list[bc] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan barcode list: %w", err)
	}
	return list, nil
}

// Allows returns true if the barcode is permitted.
func (l AllowList) Allows(bc string) bool {
	if l == nil {
		return true
	}
	_, ok := l[bc]
	return ok
}
