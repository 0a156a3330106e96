package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesToAddress(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input  []byte
		output Address
	}{
		{
			// empty input gives the zero address
			nil,
			ZeroAddress,
		},
		{
			[]byte{0x1},
			Address{19: 0x1},
		},
		{
			// longer inputs keep the rightmost bytes
			append(make([]byte, 30), 0x1),
			Address{19: 0x1},
		},
	}

	for _, c := range cases {
		assert.Equal(t, c.output, BytesToAddress(c.input))
	}
}

func TestStringToAddress(t *testing.T) {
	t.Parallel()

	addr := StringToAddress("0x1")

	assert.Equal(t, Address{19: 0x1}, addr)
	assert.Equal(t, "0x0000000000000000000000000000000000000001", addr.String())
}

func TestAddressMarshalText(t *testing.T) {
	t.Parallel()

	addr := StringToAddress("0xabcdef0123456789abcdef0123456789abcdef01")

	marshalled, err := addr.MarshalText()
	require.NoError(t, err)

	var parsed Address
	require.NoError(t, parsed.UnmarshalText(marshalled))

	assert.Equal(t, addr, parsed)

	// addresses have a fixed width
	assert.Error(t, parsed.UnmarshalText([]byte("0x1234")))
}
