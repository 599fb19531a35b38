package cipher

import (
	"fmt"
	"strings"
)

// Operation is one of the three transforms the player applies to a signature.
type Operation int

const (
	// Swap exchanges the first character with the one at Arg mod len.
	Swap Operation = iota + 1
	// Splice drops the first Arg characters.
	Splice
	// Reverse reverses the whole signature. Arg is ignored.
	Reverse
)

func (op Operation) String() string {
	switch op {
	case Swap:
		return "swap"
	case Splice:
		return "splice"
	case Reverse:
		return "reverse"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// Step is a single operation with its integer operand.
type Step struct {
	Op  Operation
	Arg int
}

func (s Step) String() string {
	return fmt.Sprintf("%s(%d)", s.Op, s.Arg)
}

// Program is the ordered list of steps recovered from a player script.
type Program []Step

func (p Program) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Helper is a transform implementation found in the player script.
type Helper struct {
	Name   string
	Params string
	Body   string
	Op     Operation
}

// Compiled is the result of compiling a player script.
type Compiled struct {
	Program Program
	// EntryName is the name of the signature function.
	EntryName string
	// Param is the entry function's parameter name.
	Param string
	// Object is the helper object referenced by the calls.
	Object string
	// Methods lists the helper invoked by each step as "object.method", in order.
	Methods []string
	// Helpers is keyed by "object.method".
	Helpers map[string]Helper
}
