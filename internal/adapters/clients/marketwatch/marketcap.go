package marketwatch

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jsamuelsen/stockquote-service/internal/domain"
)

// currencyPrefixes maps display prefixes to ISO 4217 codes.
// Longer prefixes come first so "HK$" is not read as "$".
var currencyPrefixes = []struct {
	prefix string
	code   string
}{
	{"HK$", "HKD"},
	{"C$", "CAD"},
	{"A$", "AUD"},
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₩", "KRW"},
	{"₹", "INR"},
}

var magnitudes = map[byte]decimal.Decimal{
	'K': decimal.New(1, 3),
	'M': decimal.New(1, 6),
	'B': decimal.New(1, 9),
	'T': decimal.New(1, 12),
}

// ParseMarketCap normalizes strings like "$3.09T", "₩403.65B", "950M" or
// "1,234" into an amount and currency. Values without a recognised prefix
// use defaultCurrency.
func ParseMarketCap(raw, defaultCurrency string) (domain.MarketCap, error) {
	s := strings.TrimSpace(raw)
	currency := defaultCurrency

	for _, p := range currencyPrefixes {
		if rest, ok := strings.CutPrefix(s, p.prefix); ok {
			s = strings.TrimSpace(rest)
			currency = p.code

			break
		}
	}

	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return domain.MarketCap{}, fmt.Errorf("market cap %q: no amount", raw)
	}

	multiplier := decimal.NewFromInt(1)
	if m, ok := magnitudes[upper(s[len(s)-1])]; ok {
		multiplier = m
		s = s[:len(s)-1]
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return domain.MarketCap{}, fmt.Errorf("market cap %q: %w", raw, err)
	}

	if amount.IsNegative() {
		return domain.MarketCap{}, fmt.Errorf("market cap %q: negative amount", raw)
	}

	return domain.MarketCap{Amount: amount.Mul(multiplier), Currency: currency}, nil
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}

	return b
}
