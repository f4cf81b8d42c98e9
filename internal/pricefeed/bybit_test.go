package pricefeed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/util"
)

func TestParseTicker(t *testing.T) {
	t.Run("FullTicker", func(t *testing.T) {
		body := []byte(`{"retCode":0,"retMsg":"OK","result":{"category":"spot","list":[
			{"symbol":"BTCUSDT","lastPrice":"64250.5","price24hPcnt":"0.0125",
			 "highPrice24h":"65000","lowPrice24h":"63000.25","volume24h":"1234.5"}]}}`)

		q, err := parseTicker(body)
		require.NoError(t, err)
		assert.Equal(t, 64250.5, q.Price)
		assert.InDelta(t, 1.25, q.Change24h, 1e-12)
		assert.Equal(t, 65000.0, q.High24h)
		assert.Equal(t, 63000.25, q.Low24h)
		assert.Equal(t, 1234.5, q.Volume24h)
	})

	t.Run("NumericFieldsAndMissingOptionals", func(t *testing.T) {
		q, err := parseTicker([]byte(`{"result":{"list":[{"lastPrice":100,"price24hPcnt":-0.5}]}}`))
		require.NoError(t, err)
		assert.Equal(t, 100.0, q.Price)
		assert.Equal(t, -50.0, q.Change24h)
		assert.Zero(t, q.High24h)
	})

	t.Run("MissingLastPrice", func(t *testing.T) {
		_, err := parseTicker([]byte(`{"result":{"list":[{"price24hPcnt":"0.01"}]}}`))
		assert.ErrorIs(t, err, util.ErrMalformedResponse)
	})

	t.Run("MissingChange", func(t *testing.T) {
		_, err := parseTicker([]byte(`{"result":{"list":[{"lastPrice":"1"}]}}`))
		assert.ErrorIs(t, err, util.ErrMalformedResponse)
	})

	t.Run("UnparsablePrice", func(t *testing.T) {
		_, err := parseTicker([]byte(`{"result":{"list":[{"lastPrice":"abc","price24hPcnt":"0"}]}}`))
		assert.ErrorIs(t, err, util.ErrMalformedResponse)
	})

	t.Run("EmptyList", func(t *testing.T) {
		_, err := parseTicker([]byte(`{"retCode":0,"result":{"list":[]}}`))
		assert.ErrorIs(t, err, util.ErrSymbolNotFound)
	})

	t.Run("ExchangeError", func(t *testing.T) {
		_, err := parseTicker([]byte(`{"retCode":10001,"retMsg":"Not supported symbols","result":{}}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Not supported symbols")
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		_, err := parseTicker([]byte(`<html>`))
		assert.ErrorIs(t, err, util.ErrMalformedResponse)
	})
}
