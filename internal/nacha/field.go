package nacha

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// alphaField left-justifies and space-pads s to width, truncating overflow.
func alphaField(s string, width int) string {
	if len(s) > width {
		s = s[:width]
	}

	return s + strings.Repeat(" ", width-len(s))
}

// numField right-justifies and zero-pads n to width.
func numField(n int64, width int) (string, error) {
	s := fmt.Sprintf("%0*d", width, n)
	if len(s) > width {
		return "", fmt.Errorf("value %d overflows %d-digit field", n, width)
	}

	return s, nil
}

// asciiFold decomposes accented characters and strips combining marks, so
// names like "João" render as "Joao".
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// sanitizeName folds a payee name to plain ASCII. Characters that survive
// folding but still fall outside printable ASCII make the whole encode fail:
// the wire format has no escape mechanism, and silently dropping characters
// would change whose name appears on the receiver's statement.
func sanitizeName(name string) (string, error) {
	folded, _, err := transform.String(asciiFold, name)
	if err != nil {
		return "", fmt.Errorf("folding name %q: %w", name, err)
	}

	folded = strings.ToUpper(folded)

	for _, r := range folded {
		if r < 0x20 || r > 0x7e {
			return "", fmt.Errorf("name %q contains non-ASCII character %q after folding", name, r)
		}
	}

	return folded, nil
}
