/*
Package cipher recovers and applies the signature program embedded in the
site's player script.

Streams that are not served with a direct URL carry a scrambled signature.
The player script unscrambles it with a short function that calls three
kinds of helpers: swap, splice and reverse. This package compiles that
function into a Program without executing any JavaScript, and applies the
Program to signatures.

# Compilation

Compile works in five steps:

 1. Find the entry function name, either from the encodeURIComponent call
    wrapping it or from its a=a.split("") prologue.
 2. Extract the entry function body with a string-aware brace matcher.
 3. Collect every helper call made on the entry parameter, in source order.
 4. Find each helper implementation, preferably inside the helper object
    literal, and classify it with IsSwapBody, IsSpliceBody and IsReverseBody.
 5. Zip calls and classifications into the Program.

Any missing piece yields an *Error whose code says which step failed.

# Decoding

	out, err := cipher.Decode(signature, compiled.Program)

Decode is a pure function. Splice beyond the signature length, negative
operands and swaps on an empty signature are errors, never panics.

# Verification

Verify optionally rebuilds the recovered helpers as a small script and runs
it in otto or goja, comparing the result with Decode:

	engine, _ := cipher.EngineByName("goja")
	if err := cipher.Verify(compiled, engine, "", 0); err != nil {
		// classification disagrees with the player
	}

# Error Codes

  - ENTRY_FUNCTION_NOT_FOUND, ENTRY_BODY_NOT_FOUND, NO_TRANSFORM_CALLS,
    HELPER_NOT_FOUND, HELPER_UNCLASSIFIABLE, VERIFY_MISMATCH,
    JS_EXECUTION_FAILED, JS_EXECUTION_TIMEOUT: the program could not be
    recovered; errors.Is(err, errs.ErrCipherProgramNotFound) holds.
  - OPERAND_INVALID, SPLICE_OUT_OF_RANGE, SIGNATURE_EMPTY,
    UNKNOWN_OPERATION: applying the program failed;
    errors.Is(err, errs.ErrSignatureDecodeFailed) holds.

# Caching

ProgramCache keeps compiled programs per player script URL and cache
format version. It is safe for concurrent use.
*/
package cipher
