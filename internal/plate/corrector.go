// Package plate normalizes and validates license plate text read off camera
// frames. Plates follow the ten character grammar LL DD LL DDDD.
package plate

// PlateLength is the expected length of a full plate.
const PlateLength = 10

// ConfusionTables maps, per character position, an OCR misread to the
// character it should have been. Letter positions correct digit lookalikes,
// digit positions correct letter lookalikes.
type ConfusionTables [PlateLength]map[byte]byte

// DefaultConfusionTables returns the corrections for common OCR misreads of
// the LL DD LL DDDD grammar.
func DefaultConfusionTables() ConfusionTables {
	letterToDigit := map[byte]byte{'O': '0', 'I': '1', 'Z': '2', 'A': '4', 'S': '5', 'G': '6', 'B': '8'}
	return ConfusionTables{
		0: {'0': 'D', '1': 'D', '4': 'A', '7': 'D', '8': 'B'},
		1: {'0': 'L', '1': 'I', '2': 'Z', '4': 'A', '5': 'S', '7': 'Z', '8': 'B'},
		2: letterToDigit,
		3: letterToDigit,
		4: {'0': 'D', '1': 'I', '2': 'Z', '4': 'A', '5': 'S', '7': 'Z', '8': 'B'},
		5: {'0': 'D', '1': 'I', '2': 'Z', '4': 'A', '5': 'S', '7': 'Z', '8': 'B'},
		6: letterToDigit,
		7: letterToDigit,
		8: letterToDigit,
		9: letterToDigit,
	}
}

// Corrector applies positional confusion-table corrections to candidate
// plate text. It is deterministic and side-effect free.
type Corrector struct {
	tables ConfusionTables
}

// NewCorrector builds a Corrector from the given tables.
func NewCorrector(tables ConfusionTables) *Corrector {
	return &Corrector{tables: tables}
}

// NewDefaultCorrector builds a Corrector with DefaultConfusionTables.
func NewDefaultCorrector() *Corrector {
	return NewCorrector(DefaultConfusionTables())
}

// Correct replaces each character with its positional correction if one is
// mapped, otherwise leaves it unchanged. Inputs that are not exactly
// PlateLength characters are returned as-is; callers must check length before
// relying on correction.
func (c *Corrector) Correct(text string) string {
	if len(text) != PlateLength {
		return text
	}
	out := make([]byte, PlateLength)
	for i := 0; i < PlateLength; i++ {
		ch := text[i]
		if mapped, ok := c.tables[i][ch]; ok {
			ch = mapped
		}
		out[i] = ch
	}
	return string(out)
}
