package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	errStock := Validation("insufficient stock")

	wrapped := fmt.Errorf("%w: Door Gasket", errStock)
	assert.Equal(t, KindValidation, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, errStock))
	assert.Equal(t, "insufficient stock: Door Gasket", Message(wrapped))

	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestMessageHidesCauses(t *testing.T) {
	up := Upstream("payment gateway unavailable", errors.New("dial tcp: timeout"))
	assert.Equal(t, "payment gateway unavailable", Message(up))
	assert.Equal(t, "payment gateway unavailable: dial tcp: timeout", up.Error())
	assert.Equal(t, "internal server error", Message(errors.New("pq: relation missing")))
}
