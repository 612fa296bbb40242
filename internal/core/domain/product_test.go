package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProduct(t *testing.T) {
	p, err := NewProduct("  Koi  ", 10, 5000)
	require.NoError(t, err)
	assert.Equal(t, "Koi", p.Name)
	assert.Equal(t, 10, p.Stock)
	assert.Equal(t, int64(5000), p.Price)
	assert.False(t, p.CreatedAt.IsZero())

	cases := []struct {
		name  string
		stock int
		price int64
	}{
		{"", 1, 100},
		{"   ", 1, 100},
		{"Koi", -1, 100},
		{"Koi", 1, 0},
		{"Koi", 1, -50},
	}
	for _, tc := range cases {
		_, err := NewProduct(tc.name, tc.stock, tc.price)
		var validation *ValidationError
		assert.ErrorAs(t, err, &validation, "NewProduct(%q, %d, %d)", tc.name, tc.stock, tc.price)
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusSuccess.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestPersistenceErrorUnwrap(t *testing.T) {
	inner := errors.New("disk full")
	err := &PersistenceError{Op: "ledger.Put", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "ledger.Put")
}
