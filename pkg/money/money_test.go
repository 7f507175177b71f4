package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "100.00", Format(10000))
	assert.Equal(t, "0.05", Format(5))
	assert.Equal(t, "-12.30", Format(-1230))
}

func TestParseCents(t *testing.T) {
	cents, err := ParseCents("19.99")
	require.NoError(t, err)
	assert.Equal(t, int64(1999), cents)

	cents, err = ParseCents(" 7 ")
	require.NoError(t, err)
	assert.Equal(t, int64(700), cents)

	_, err = ParseCents("1.999")
	assert.Error(t, err)

	_, err = ParseCents("abc")
	assert.Error(t, err)
}

func TestAmountJSON(t *testing.T) {
	raw, err := json.Marshal(FromCents(4550))
	require.NoError(t, err)
	assert.JSONEq(t, `{"cents":4550,"amount":"45.50"}`, string(raw))
}

func TestCurrency(t *testing.T) {
	assert.Equal(t, "usd", NormalizeCurrency(""))
	assert.Equal(t, "usd", NormalizeCurrency(" USD "))
	assert.True(t, Supported("USD"))
	assert.False(t, Supported("try"))
}
