package errs

import (
	"errors"
	"fmt"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := E(KindSchema, "sqlite.open", errors.New("no such column: selftext"))
	wrapped := fmt.Errorf("open store: %w", base)

	assert.Equal(t, KindSchema, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, Schema))
	assert.False(t, errors.Is(wrapped, StorageUnavailable))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, 0, ExitCode(nil))
}

func TestExitCodesAreDistinctAndNonZero(t *testing.T) {
	seen := map[int]Kind{}
	for kind := KindConfigParse; kind <= KindIO; kind++ {
		code := ExitCode(E(kind, "op", errors.New("x")))
		assert.NotZero(t, code, kind.String())
		if prev, ok := seen[code]; ok {
			t.Errorf("kinds %q and %q share exit code %d", prev, kind, code)
		}
		seen[code] = kind
	}
}

func TestMessage(t *testing.T) {
	err := Errorf(KindInvalidArgument, "reddit.GetListing", "unknown relevance %q", "bogus")
	assert.Equal(t, `invalid argument: reddit.GetListing: unknown relevance "bogus"`, Message(err))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := E(KindIO, "export.Export", cause)
	assert.ErrorIs(t, err, cause)
}
