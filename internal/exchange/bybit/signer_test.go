package bybit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign(t *testing.T) {
	sig := Sign("secret", "1690000000000", "key", "5000", "param=1")
	assert.Equal(t, "1c841861eb3bfcf8e5fe5ee1b44618f0c1be32c5002407acf77e64a5d80eb9c4", sig)
}

func TestSign_PayloadChangesSignature(t *testing.T) {
	a := Sign("secret", "1690000000000", "key", "5000", `{"qty":"1"}`)
	b := Sign("secret", "1690000000000", "key", "5000", `{"qty":"2"}`)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64)
}
