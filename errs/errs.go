package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a resolution failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidInput indicates the input is neither a video id nor a recognised URL.
	KindInvalidInput
	// KindFetchFailed indicates a transport failure, a timeout or an unexpected status.
	KindFetchFailed
	// KindRateLimited indicates the site answered with a throttling page.
	KindRateLimited
	// KindCaptchaChallenge indicates the site answered with a captcha interstitial.
	KindCaptchaChallenge
	// KindNotFound indicates the watch page reported the video as missing.
	KindNotFound
	// KindPlayerPayloadNotFound indicates neither the watch page nor the fallback carried a payload.
	KindPlayerPayloadNotFound
	// KindUnplayable indicates the payload has no streams and a non-OK playability status.
	KindUnplayable
	// KindCipherProgramNotFound indicates the cipher program could not be recovered.
	KindCipherProgramNotFound
	// KindSignatureDecodeFailed indicates applying the cipher program failed.
	KindSignatureDecodeFailed
	// KindFormatEntryUnresolvable marks a single stream entry that was dropped.
	KindFormatEntryUnresolvable
)

var kindNames = map[Kind]string{
	KindUnknown:                 "unknown",
	KindInvalidInput:            "invalid input",
	KindFetchFailed:             "fetch failed",
	KindRateLimited:             "rate limited",
	KindCaptchaChallenge:        "captcha challenge",
	KindNotFound:                "video not found",
	KindPlayerPayloadNotFound:   "player payload not found",
	KindUnplayable:              "video unplayable",
	KindCipherProgramNotFound:   "cipher program not found",
	KindSignatureDecodeFailed:   "signature decode failed",
	KindFormatEntryUnresolvable: "format entry unresolvable",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var (
	// ErrInvalidInput indicates the input could not be turned into a video id.
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
	// ErrFetchFailed indicates an outbound request failed or timed out.
	ErrFetchFailed = &Error{Kind: KindFetchFailed}
	// ErrRateLimited indicates throttling or rate limiting by the remote service.
	ErrRateLimited = &Error{Kind: KindRateLimited}
	// ErrCaptchaChallenge indicates the remote service demands a captcha.
	ErrCaptchaChallenge = &Error{Kind: KindCaptchaChallenge}
	// ErrNotFound indicates the requested video does not exist.
	ErrNotFound = &Error{Kind: KindNotFound}
	// ErrPlayerPayloadNotFound indicates no player configuration could be located.
	ErrPlayerPayloadNotFound = &Error{Kind: KindPlayerPayloadNotFound}
	// ErrUnplayable indicates the video exists but exposes no streams.
	ErrUnplayable = &Error{Kind: KindUnplayable}
	// ErrCipherProgramNotFound indicates failure to recover the signature program.
	ErrCipherProgramNotFound = &Error{Kind: KindCipherProgramNotFound}
	// ErrSignatureDecodeFailed indicates failure while applying the signature program.
	ErrSignatureDecodeFailed = &Error{Kind: KindSignatureDecodeFailed}
	// ErrFormatEntryUnresolvable indicates a stream entry had no usable URL.
	ErrFormatEntryUnresolvable = &Error{Kind: KindFormatEntryUnresolvable}
)

// Error is a classified failure. Op names the step that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New returns an error of the given kind for op, wrapping err (which may be nil).
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf is New with a formatted cause.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Wrap classifies err under op. Errors that already carry a kind keep it;
// anything else gets fallback.
func Wrap(fallback Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	if kind == KindUnknown {
		kind = fallback
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Fatal reports whether err aborts a whole resolution.
func Fatal(err error) bool {
	return err != nil && KindOf(err) != KindFormatEntryUnresolvable
}
