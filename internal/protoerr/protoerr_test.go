package protoerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_NilIsSuccess(t *testing.T) {
	assert.Equal(t, Success, Classify(nil))
}

func TestClassify_WrappedSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{ErrInvalidHandle, InvalidObject},
		{ErrUnsupported, NoSupport},
		{ErrNotFound, NotFound},
		{ErrInvalidParameter, InvalidParameter},
		{ErrMalformed, Malformed},
		{ErrNotInitialized, NotInitialized},
	}

	for _, tc := range cases {
		got := Classify(&wrapErr{tc.err})
		assert.Equal(t, tc.want, got, tc.err.Error())
	}
}

type wrapErr struct{ err error }

func (w *wrapErr) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapErr) Unwrap() error { return w.err }

func TestClassify_UnknownErrorFallsBackToInvalidObject(t *testing.T) {
	assert.Equal(t, InvalidObject, Classify(errors.New("something unclassified")))
}

func TestClassify_ExplicitErrorCodeWins(t *testing.T) {
	err := New("open_folder", NotFound, ErrNotFound)
	assert.Equal(t, NotFound, Classify(err))
}

func TestError_UnwrapExposesSentinel(t *testing.T) {
	err := New("get_properties", Malformed, ErrMalformed)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestError_MessageIncludesOpAndCode(t *testing.T) {
	err := New("open_table", NoSupport, ErrUnsupported)
	msg := err.Error()
	assert.Contains(t, msg, "open_table")
	assert.Contains(t, msg, "NoSupport")
}

func TestCode_StringRoundTrip(t *testing.T) {
	for _, c := range []Code{Success, InvalidObject, InvalidParameter, NotFound, NoSupport, NotInitialized, Malformed} {
		assert.NotEmpty(t, c.String())
	}
}
