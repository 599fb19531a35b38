package cipher

import "strings"

// Decode applies p to sig in order and returns the trimmed result.
// The same input always yields the same output. Out-of-range or
// negative operands are reported as errors.
func Decode(sig string, p Program) (string, error) {
	s := []byte(sig)
	for i, st := range p {
		if st.Arg < 0 {
			return "", NewError(ErrCodeOperandInvalid, "negative operand", map[string]any{"step": i, "arg": st.Arg})
		}
		switch st.Op {
		case Swap:
			if len(s) == 0 {
				return "", NewError(ErrCodeSignatureEmpty, "swap on empty signature", map[string]any{"step": i})
			}
			n := st.Arg % len(s)
			s[0], s[n] = s[n], s[0]
		case Splice:
			if st.Arg > len(s) {
				return "", NewError(ErrCodeSpliceOutOfRange, "splice beyond signature length",
					map[string]any{"step": i, "arg": st.Arg, "len": len(s)})
			}
			s = s[st.Arg:]
		case Reverse:
			for l, r := 0, len(s)-1; l < r; l, r = l+1, r-1 {
				s[l], s[r] = s[r], s[l]
			}
		default:
			return "", NewError(ErrCodeUnknownOperation, "unknown operation", map[string]any{"step": i, "op": int(st.Op)})
		}
	}
	return strings.TrimSpace(string(s)), nil
}
