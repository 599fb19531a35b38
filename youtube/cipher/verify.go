package cipher

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/robertkrimen/otto"
)

const (
	probeObject   = "__ytlinksHelpers"
	probeFunction = "__ytlinksProbe"

	// DefaultProbe is the signature used when Verify is given none.
	DefaultProbe = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_.~"
	// DefaultVerifyTimeout bounds a single engine run.
	DefaultVerifyTimeout = 2 * time.Second
)

var errJSTimeout = errors.New("js execution timed out")

// Engine runs a script and calls one of its functions with a string.
type Engine interface {
	Name() string
	Call(script, fn, arg string, timeout time.Duration) (string, error)
}

// EngineByName returns the engine registered under name ("otto" or "goja").
func EngineByName(name string) (Engine, error) {
	switch strings.ToLower(name) {
	case "otto":
		return OttoEngine{}, nil
	case "goja":
		return GojaEngine{}, nil
	}
	return nil, fmt.Errorf("unknown js engine %q", name)
}

// ProbeScript rebuilds the recovered helpers and call sequence as a
// standalone script exposing a single probe function.
func ProbeScript(c *Compiled) string {
	names := make([]string, 0, len(c.Helpers))
	for n := range c.Helpers {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("var " + probeObject + "={")
	for i, n := range names {
		h := c.Helpers[n]
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%q:function(%s){%s}", n, h.Params, h.Body)
	}
	b.WriteString("};\n")
	fmt.Fprintf(&b, "function %s(s){var a=s.split(\"\");", probeFunction)
	for i, m := range c.Methods {
		fmt.Fprintf(&b, "%s[%q](a,%d);", probeObject, m, c.Program[i].Arg)
	}
	b.WriteString("return a.join(\"\")}")
	return b.String()
}

// Verify runs the recovered helpers in e and checks that the result
// agrees with Decode for the probe signature.
func Verify(c *Compiled, e Engine, probe string, timeout time.Duration) error {
	if probe == "" {
		probe = DefaultProbe
	}
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}
	want, err := Decode(probe, c.Program)
	if err != nil {
		return err
	}
	got, err := e.Call(ProbeScript(c), probeFunction, probe, timeout)
	if err != nil {
		return err
	}
	if strings.TrimSpace(got) != want {
		return NewError(ErrCodeVerifyMismatch, "program disagrees with player helpers",
			map[string]any{"engine": e.Name(), "program": c.Program.String(), "js": got, "go": want})
	}
	return nil
}

// OttoEngine runs scripts with otto.
type OttoEngine struct{}

func (OttoEngine) Name() string { return "otto" }

func (OttoEngine) Call(script, fn, arg string, timeout time.Duration) (result string, err error) {
	vm := otto.New()
	vm.Interrupt = make(chan func(), 1)
	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt <- func() { panic(errJSTimeout) }
	})
	defer timer.Stop()
	defer func() {
		if r := recover(); r != nil {
			if r == errJSTimeout {
				err = NewError(ErrCodeJSExecutionTimeout, "otto run timed out", map[string]any{"timeout": timeout.String()})
				return
			}
			panic(r)
		}
	}()

	if _, err := vm.Run(script); err != nil {
		return "", NewError(ErrCodeJSExecutionFailed, "otto run failed", err.Error())
	}
	v, err := vm.Call(fn, nil, arg)
	if err != nil {
		return "", NewError(ErrCodeJSExecutionFailed, "otto call failed", err.Error())
	}
	s, err := v.ToString()
	if err != nil {
		return "", NewError(ErrCodeJSExecutionFailed, "otto result is not a string", err.Error())
	}
	return s, nil
}

// GojaEngine runs scripts with goja.
type GojaEngine struct{}

func (GojaEngine) Name() string { return "goja" }

func (GojaEngine) Call(script, fn, arg string, timeout time.Duration) (string, error) {
	vm := goja.New()
	timer := time.AfterFunc(timeout, func() { vm.Interrupt(errJSTimeout) })
	defer timer.Stop()

	if _, err := vm.RunString(script); err != nil {
		return "", gojaError("goja run failed", err, timeout)
	}
	call, ok := goja.AssertFunction(vm.Get(fn))
	if !ok {
		return "", NewError(ErrCodeJSExecutionFailed, "goja: not a function", fn)
	}
	v, err := call(goja.Undefined(), vm.ToValue(arg))
	if err != nil {
		return "", gojaError("goja call failed", err, timeout)
	}
	return v.String(), nil
}

func gojaError(msg string, err error, timeout time.Duration) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return NewError(ErrCodeJSExecutionTimeout, "goja run timed out", map[string]any{"timeout": timeout.String()})
	}
	return NewError(ErrCodeJSExecutionFailed, msg, err.Error())
}
