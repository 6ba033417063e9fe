package docid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromValueNormalizesNumerics(t *testing.T) {
	assert.Equal(t, "7", FromValue(int64(7)))
	assert.Equal(t, "7", FromValue(float64(7)))
	assert.Equal(t, "7", FromValue("7"))
	assert.Equal(t, "7.5", FromValue(7.5))
	assert.Equal(t, "abc", FromValue([]byte("abc")))
}

func TestCompositeRoundTrip(t *testing.T) {
	c := Composite{Table: "orders", Key: "42"}
	assert.Equal(t, "orders:42", c.String())
	assert.Equal(t, c, Parse("orders:42"))

	bare := Composite{Key: "42"}
	assert.Equal(t, "42", bare.String())
	assert.Equal(t, bare, Parse("42"))
}

func TestDeriveIsDeterministic(t *testing.T) {
	a := Derive(map[string]any{"name": "Alice", "city": "Lyon"})
	b := Derive(map[string]any{"city": "Lyon", "name": "Alice"})
	assert.Equal(t, a, b)

	c := Derive(map[string]any{"name": "Alice", "city": "Paris"})
	assert.NotEqual(t, a, c)
}

func TestDeriveIsValidUUID(t *testing.T) {
	id := Derive(map[string]any{"k": "v"})
	assert.Len(t, id, 36)
}
