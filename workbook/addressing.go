package workbook

import "strconv"

// IndexToAddress converts zero-based (row, col) indices to an A1 address.
func IndexToAddress(row, col uint32) string {
	var letters [8]byte
	i := len(letters)
	for {
		i--
		letters[i] = byte('A' + col%26)
		if col < 26 {
			break
		}
		col = col/26 - 1
	}
	return string(letters[i:]) + strconv.FormatUint(uint64(row)+1, 10)
}

// AddressToIndex parses an A1 address into zero-based (row, col) indices.
// Malformed addresses (missing letters or digits, zero row, letters after
// digits, overflow) report ok=false.
func AddressToIndex(a1 string) (row, col uint32, ok bool) {
	if a1 == "" {
		return 0, 0, false
	}

	var r, c uint64
	sawLetter := false
	sawDigit := false

	for i := 0; i < len(a1); i++ {
		ch := a1[i]
		switch {
		case ch >= 'A' && ch <= 'Z', ch >= 'a' && ch <= 'z':
			if sawDigit {
				return 0, 0, false
			}
			sawLetter = true
			upper := ch &^ 0x20
			c = c*26 + uint64(upper-'A'+1)
			if c > 1<<32 {
				return 0, 0, false
			}
		case ch >= '0' && ch <= '9':
			sawDigit = true
			r = r*10 + uint64(ch-'0')
			if r > 1<<32 {
				return 0, 0, false
			}
		default:
			return 0, 0, false
		}
	}

	if !sawLetter || !sawDigit || r == 0 || c == 0 {
		return 0, 0, false
	}
	return uint32(r - 1), uint32(c - 1), true
}
