package cipher

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/ytlinks/errs"
)

func TestVerifyEngines(t *testing.T) {
	c, err := Compile(helperObject + entryFunction)
	require.NoError(t, err)

	for _, name := range []string{"otto", "goja"} {
		t.Run(name, func(t *testing.T) {
			engine, err := EngineByName(name)
			require.NoError(t, err)
			assert.Equal(t, name, engine.Name())
			assert.NoError(t, Verify(c, engine, "", 0))
		})
	}
}

func TestVerifyMismatch(t *testing.T) {
	c, err := Compile(helperObject + entryFunction)
	require.NoError(t, err)

	// Misclassify the swap helper as reverse.
	c.Program[1].Op = Reverse

	err = Verify(c, GojaEngine{}, "", 0)
	require.Error(t, err)
	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrCodeVerifyMismatch, ce.Code)
	assert.True(t, errors.Is(err, errs.ErrCipherProgramNotFound))
}

func TestProbeScript(t *testing.T) {
	c, err := Compile(helperObject + entryFunction)
	require.NoError(t, err)

	script := ProbeScript(c)
	assert.Contains(t, script, `"wm.zO":function(a,b){a.splice(0,b)}`)
	assert.Contains(t, script, `__ytlinksHelpers["wm.zO"](a,47);__ytlinksHelpers["wm.vY"](a,1);__ytlinksHelpers["wm.z9"](a,68);`)
	assert.True(t, strings.HasSuffix(script, `return a.join("")}`))
}

func TestVerifySameMethodOnTwoObjects(t *testing.T) {
	js := `var wm={zO:function(a,b){a.splice(0,b)}};` +
		`var qx={zO:function(a){a.reverse()}};` +
		`xm=function(a){a=a.split("");wm.zO(a,2);qx.zO(a,0)};`
	c, err := Compile(js)
	require.NoError(t, err)
	assert.NoError(t, Verify(c, GojaEngine{}, "", 0))
}

func TestEngineTimeout(t *testing.T) {
	loop := `function spin(s){var i=0;while(true){i++}}`
	for _, e := range []Engine{OttoEngine{}, GojaEngine{}} {
		t.Run(e.Name(), func(t *testing.T) {
			_, err := e.Call(loop, "spin", "x", 50*time.Millisecond)
			require.Error(t, err)
			assert.True(t, IsJSError(err))
		})
	}
}

func TestEngineByNameUnknown(t *testing.T) {
	_, err := EngineByName("v8")
	assert.Error(t, err)
}

func TestProgramCache(t *testing.T) {
	pc := NewProgramCache("v3", time.Hour)
	_, ok := pc.Get("https://www.youtube.com/s/player/abc/base.js")
	assert.False(t, ok)

	c := &Compiled{Program: Program{{Reverse, 0}}}
	pc.Put("https://www.youtube.com/s/player/abc/base.js", c)

	got, ok := pc.Get("https://www.youtube.com/s/player/abc/base.js")
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.Equal(t, 1, pc.Len())

	other := NewProgramCache("v4", -1)
	_, ok = other.Get("https://www.youtube.com/s/player/abc/base.js")
	assert.False(t, ok)
}
