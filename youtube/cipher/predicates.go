package cipher

import "regexp"

var (
	swapBodyRe    = regexp.MustCompile(`%\s*[a-zA-Z0-9$_]+\.length|[a-zA-Z0-9$_]+\[0\]\s*=\s*[a-zA-Z0-9$_]+\[`)
	spliceBodyRe  = regexp.MustCompile(`\.(?:splice|slice)\(`)
	reverseBodyRe = regexp.MustCompile(`\.reverse\(\s*\)`)
)

// IsSwapBody reports whether a helper body swaps the first element with
// another one picked by index modulo length.
func IsSwapBody(body string) bool { return swapBodyRe.MatchString(body) }

// IsSpliceBody reports whether a helper body removes a leading run of elements.
func IsSpliceBody(body string) bool { return spliceBodyRe.MatchString(body) }

// IsReverseBody reports whether a helper body reverses its argument.
func IsReverseBody(body string) bool { return reverseBodyRe.MatchString(body) }

// Classify maps a helper body to its operation. Predicates are tried in
// the order swap, splice, reverse.
func Classify(body string) (Operation, bool) {
	switch {
	case IsSwapBody(body):
		return Swap, true
	case IsSpliceBody(body):
		return Splice, true
	case IsReverseBody(body):
		return Reverse, true
	}
	return 0, false
}
