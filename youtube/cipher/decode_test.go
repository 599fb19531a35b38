package cipher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/ytlinks/errs"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		sig     string
		program Program
		want    string
	}{
		{name: "reverse then splice", sig: "abcdef", program: Program{{Reverse, 0}, {Splice, 2}}, want: "dcba"},
		{name: "swap wraps modulo length", sig: "abcdef", program: Program{{Swap, 7}}, want: "bacdef"},
		{name: "swap zero is identity", sig: "abcdef", program: Program{{Swap, 0}}, want: "abcdef"},
		{name: "splice whole signature", sig: "abc", program: Program{{Splice, 3}}, want: ""},
		{name: "empty program", sig: "abc", program: nil, want: "abc"},
		{name: "result is trimmed", sig: "  ab", program: Program{{Reverse, 0}}, want: "ba"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.sig, tt.program)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeIsDeterministic(t *testing.T) {
	p := Program{{Splice, 3}, {Swap, 13}, {Reverse, 0}, {Swap, 40}}
	sig := "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnop"

	first, err := Decode(sig, p)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Decode(sig, p)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSwapTwiceIsIdentity(t *testing.T) {
	for n := 0; n < 20; n++ {
		got, err := Decode("signature", Program{{Swap, n}, {Swap, n}})
		require.NoError(t, err)
		assert.Equal(t, "signature", got, "n=%d", n)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		sig     string
		program Program
		code    string
	}{
		{name: "splice out of range", sig: "abc", program: Program{{Splice, 4}}, code: ErrCodeSpliceOutOfRange},
		{name: "negative operand", sig: "abc", program: Program{{Swap, -1}}, code: ErrCodeOperandInvalid},
		{name: "swap on empty", sig: "", program: Program{{Swap, 1}}, code: ErrCodeSignatureEmpty},
		{name: "unknown operation", sig: "abc", program: Program{{Operation(9), 1}}, code: ErrCodeUnknownOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			assert.NotPanics(t, func() { _, err = Decode(tt.sig, tt.program) })
			require.Error(t, err)

			var ce *Error
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.code, ce.Code)
			assert.True(t, errors.Is(err, errs.ErrSignatureDecodeFailed))
		})
	}
}

func TestProgramString(t *testing.T) {
	p := Program{{Splice, 47}, {Swap, 1}, {Reverse, 68}}
	assert.Equal(t, "[splice(47) swap(1) reverse(68)]", p.String())
}
