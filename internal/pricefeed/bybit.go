package pricefeed

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"papertrade/internal/domain"
	"papertrade/internal/util"
)

const tickerPath = "/v5/market/tickers"

var hundred = decimal.NewFromInt(100)

// parseTicker extracts a quote from a v5 market tickers response.
// Only the first entry of result.list is read.
func parseTicker(body []byte) (domain.PriceQuote, error) {
	var q domain.PriceQuote
	if !gjson.ValidBytes(body) {
		return q, fmt.Errorf("%w: invalid JSON", util.ErrMalformedResponse)
	}

	root := gjson.ParseBytes(body)
	if code := root.Get("retCode"); code.Exists() && code.Int() != 0 {
		return q, fmt.Errorf("exchange returned retCode %d: %s", code.Int(), root.Get("retMsg").String())
	}

	list := root.Get("result.list")
	if !list.IsArray() {
		return q, fmt.Errorf("%w: missing result.list", util.ErrMalformedResponse)
	}
	tickers := list.Array()
	if len(tickers) == 0 {
		return q, util.ErrSymbolNotFound
	}
	ticker := tickers[0]

	price, err := decimalField(ticker, "lastPrice")
	if err != nil {
		return q, err
	}
	change, err := decimalField(ticker, "price24hPcnt")
	if err != nil {
		return q, err
	}

	q.Price = price.InexactFloat64()
	q.Change24h = change.Mul(hundred).InexactFloat64()
	q.High24h = optionalFloat(ticker, "highPrice24h")
	q.Low24h = optionalFloat(ticker, "lowPrice24h")
	q.Volume24h = optionalFloat(ticker, "volume24h")
	return q, nil
}

// decimalField reads a required numeric field, encoded either as a string or a number.
func decimalField(obj gjson.Result, name string) (decimal.Decimal, error) {
	field := obj.Get(name)
	if !field.Exists() || field.String() == "" {
		return decimal.Zero, fmt.Errorf("%w: missing %s", util.ErrMalformedResponse, name)
	}
	d, err := decimal.NewFromString(field.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad %s %q", util.ErrMalformedResponse, name, field.String())
	}
	return d, nil
}

func optionalFloat(obj gjson.Result, name string) float64 {
	d, err := decimalField(obj, name)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}
