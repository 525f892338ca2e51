package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfResolvesThroughWrapping(t *testing.T) {
	base := New(KindNotFound, "shift not found")
	wrapped := fmt.Errorf("%w: id=42", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, base))
	assert.Equal(t, "shift not found: id=42", wrapped.Error())
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.False(t, IsKind(nil, KindInternal))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal("failed to create sale", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "failed to create sale: connection reset", err.Error())
	assert.True(t, IsKind(err, KindInternal))
}
