package cipher

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ytget/ytlinks/internal/logger"
)

const jsIdent = `[a-zA-Z0-9$_]`

var (
	// encodeURIComponent(xm(decodeURIComponent(h.s)))
	encoderCallRe = regexp.MustCompile(`encodeURIComponent\(\s*(?P<name>` + jsIdent + `{2,})\(`)
	// xm=function(a){a=a.split("")
	splitAssignRe = regexp.MustCompile(`(?:^|[^a-zA-Z0-9$_])(?P<name>` + jsIdent + `{2,})\s*=\s*function\(\s*(?P<param>` + jsIdent + `+)\s*\)\s*\{\s*(?P<target>` + jsIdent + `+)\s*=\s*(?P<source>` + jsIdent + `+)\.split\(\s*""\s*\)`)
	// function xm(a){a=a.split("")
	splitDeclRe = regexp.MustCompile(`function\s+(?P<name>` + jsIdent + `{2,})\s*\(\s*(?P<param>` + jsIdent + `+)\s*\)\s*\{\s*(?P<target>` + jsIdent + `+)\s*=\s*(?P<source>` + jsIdent + `+)\.split\(\s*""\s*\)`)
	// wm.zO(a,47)
	callRe = regexp.MustCompile(`(?P<object>` + jsIdent + `+)\.(?P<method>` + jsIdent + `+)\(\s*(?P<target>` + jsIdent + `+)\s*,\s*(?P<operand>[^,()]+?)\s*\)`)
)

func group(re *regexp.Regexp, m []string, name string) string {
	i := re.SubexpIndex(name)
	if i < 0 || i >= len(m) {
		return ""
	}
	return m[i]
}

// Compile recovers the signature program from a player script.
//
// The entry function is located first by the encoder call that wraps it,
// then by its split("") prologue. Every helper call made on the entry
// parameter is kept in source order and each helper is classified by
// its body.
func Compile(js string) (*Compiled, error) {
	log := logger.WithComponent(logger.ComponentCipher)

	name, param, body, err := findEntry(js)
	if err != nil {
		return nil, err
	}
	log.Debug("entry function located", map[string]interface{}{"name": name, "param": param})

	c := &Compiled{EntryName: name, Param: param, Helpers: make(map[string]Helper)}

	type call struct {
		object, method string
		arg            int
	}
	var calls []call
	for _, m := range callRe.FindAllStringSubmatch(body, -1) {
		if group(callRe, m, "target") != param {
			continue
		}
		operand := strings.TrimSpace(group(callRe, m, "operand"))
		n, err := strconv.Atoi(operand)
		if err != nil || n < 0 {
			return nil, NewError(ErrCodeOperandInvalid, "operand is not a non-negative integer",
				map[string]any{"call": m[0], "operand": operand})
		}
		calls = append(calls, call{object: group(callRe, m, "object"), method: group(callRe, m, "method"), arg: n})
	}
	if len(calls) == 0 {
		return nil, NewError(ErrCodeNoCalls, "entry function makes no helper calls", map[string]any{"name": name})
	}

	for _, cl := range calls {
		key := cl.object + "." + cl.method
		h, ok := c.Helpers[key]
		if !ok {
			h, err = findHelper(js, cl.object, cl.method)
			if err != nil {
				return nil, err
			}
			c.Helpers[key] = h
		}
		if c.Object == "" {
			c.Object = cl.object
		}
		c.Methods = append(c.Methods, key)
		c.Program = append(c.Program, Step{Op: h.Op, Arg: cl.arg})
	}

	log.Debug("program compiled", map[string]interface{}{"program": c.Program.String()})
	return c, nil
}

// findEntry returns the entry function's name, parameter and body.
// Encoder-wrapped candidates must look like a transform; split("")
// prologue candidates are tried after them.
func findEntry(js string) (name, param, body string, err error) {
	for _, m := range encoderCallRe.FindAllStringSubmatch(js, -1) {
		candidate := group(encoderCallRe, m, "name")
		if p, b, ok := functionBody(js, candidate); ok && transformsParam(p, b) {
			return candidate, p, b, nil
		}
	}
	var unterminated string
	for _, re := range []*regexp.Regexp{splitAssignRe, splitDeclRe} {
		for _, m := range re.FindAllStringSubmatch(js, -1) {
			p := group(re, m, "param")
			if group(re, m, "target") != p || group(re, m, "source") != p {
				continue
			}
			candidate := group(re, m, "name")
			if fp, b, ok := functionBody(js, candidate); ok {
				return candidate, fp, b, nil
			}
			if unterminated == "" {
				unterminated = candidate
			}
		}
	}
	if unterminated != "" {
		return "", "", "", NewError(ErrCodeBodyNotFound, "entry function body is unterminated", map[string]any{"name": unterminated})
	}
	return "", "", "", NewError(ErrCodeEntryNotFound, "no signature function in player script")
}

// transformsParam reports whether body opens with the split("") prologue
// on param or calls a helper on it.
func transformsParam(param, body string) bool {
	if param == "" {
		return false
	}
	q := regexp.QuoteMeta(param)
	prologue := regexp.MustCompile(`^\s*` + q + `\s*=\s*` + q + `\.split\(\s*""\s*\)`)
	if prologue.MatchString(body) {
		return true
	}
	for _, m := range callRe.FindAllStringSubmatch(body, -1) {
		if group(callRe, m, "target") == param {
			return true
		}
	}
	return false
}

// functionBody finds "name=function(p){...}" or "function name(p){...}".
func functionBody(js, name string) (param, body string, ok bool) {
	q := regexp.QuoteMeta(name)
	defs := []*regexp.Regexp{
		regexp.MustCompile(`(?:^|[^a-zA-Z0-9$_])` + q + `\s*=\s*function\s*\(\s*(?P<param>` + jsIdent + `*)\s*\)\s*\{`),
		regexp.MustCompile(`function\s+` + q + `\s*\(\s*(?P<param>` + jsIdent + `*)\s*\)\s*\{`),
	}
	for _, re := range defs {
		loc := re.FindStringSubmatchIndex(js)
		if loc == nil {
			continue
		}
		open := loc[1] - 1
		end, found := matchBrace(js, open)
		if !found {
			return "", "", false
		}
		pi := re.SubexpIndex("param")
		return js[loc[2*pi]:loc[2*pi+1]], js[open+1 : end], true
	}
	return "", "", false
}

// findHelper locates method inside the object literal named object, or
// anywhere in the script when the literal cannot be found.
func findHelper(js, object, method string) (Helper, error) {
	scope := js
	if lit, ok := objectLiteral(js, object); ok {
		scope = lit
	}
	re := regexp.MustCompile(`(?:^|[^a-zA-Z0-9$_])` + regexp.QuoteMeta(method) + `\s*:\s*function\s*\((?P<params>[^)]*)\)\s*\{`)
	loc := re.FindStringSubmatchIndex(scope)
	if loc == nil {
		return Helper{}, NewError(ErrCodeHelperNotFound, "helper implementation not found",
			map[string]any{"object": object, "method": method})
	}
	open := loc[1] - 1
	end, ok := matchBrace(scope, open)
	if !ok {
		return Helper{}, NewError(ErrCodeHelperNotFound, "helper body is unterminated",
			map[string]any{"object": object, "method": method})
	}
	pi := re.SubexpIndex("params")
	h := Helper{
		Name:   method,
		Params: strings.TrimSpace(scope[loc[2*pi]:loc[2*pi+1]]),
		Body:   scope[open+1 : end],
	}
	op, ok := Classify(h.Body)
	if !ok {
		return Helper{}, NewError(ErrCodeHelperUnknown, "helper is not a swap, splice or reverse",
			map[string]any{"method": method, "body": h.Body})
	}
	h.Op = op
	return h, nil
}

func objectLiteral(js, object string) (string, bool) {
	re := regexp.MustCompile(`(?:var|let|const)\s+` + regexp.QuoteMeta(object) + `\s*=\s*\{`)
	loc := re.FindStringIndex(js)
	if loc == nil {
		return "", false
	}
	open := loc[1] - 1
	end, ok := matchBrace(js, open)
	if !ok {
		return "", false
	}
	return js[open : end+1], true
}

// matchBrace returns the index of the brace closing the one at open.
// Braces inside string literals are ignored.
func matchBrace(src string, open int) (int, bool) {
	if open < 0 || open >= len(src) || src[open] != '{' {
		return 0, false
	}
	depth := 0
	var quote byte
	for i := open; i < len(src); i++ {
		b := src[i]
		if quote != 0 {
			switch b {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch b {
		case '"', '\'', '`':
			quote = b
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
