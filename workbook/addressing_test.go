package workbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndexToAddress(t *testing.T) {
	cases := []struct {
		row, col uint32
		want     string
	}{
		{0, 0, "A1"},
		{0, 25, "Z1"},
		{0, 26, "AA1"},
		{0, 27, "AB1"},
		{0, 51, "AZ1"},
		{0, 52, "BA1"},
		{9, 701, "ZZ10"},
		{0, 702, "AAA1"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, IndexToAddress(c.row, c.col))
	}
}

func TestAddressRoundTrip(t *testing.T) {
	addrs := []string{"A1", "B2", "Z10", "AA1", "AA10", "AB7", "AZ5", "BA1", "ZZ10", "AAA1"}
	for _, addr := range addrs {
		row, col, ok := AddressToIndex(addr)
		assert.True(t, ok, addr)
		assert.Equal(t, addr, IndexToAddress(row, col))
	}
}

func TestInvalidAddressesRejected(t *testing.T) {
	invalid := []string{"", "1A", "A0", "A", "AA0", "A-1", "A1A", "42", "a b1"}
	for _, addr := range invalid {
		_, _, ok := AddressToIndex(addr)
		assert.False(t, ok, addr)
	}
}

func TestLowercaseAddressesAccepted(t *testing.T) {
	row, col, ok := AddressToIndex("aa10")
	assert.True(t, ok)
	assert.Equal(t, uint32(9), row)
	assert.Equal(t, uint32(26), col)
}
