// Package market normalizes exchange identifiers and knows trading sessions.
package market

import (
	"errors"
	"fmt"
	"strings"
)

// Market is an exchange prefix of a canonical symbol
type Market string

const (
	HK Market = "HK"
	US Market = "US"
	SH Market = "SH"
	SZ Market = "SZ"
)

// ErrInvalidSymbol is returned when an identifier cannot be mapped to a market
var ErrInvalidSymbol = errors.New("invalid symbol")

// Provider market ids as returned by the quote gateway
const (
	ProviderHK = 1
	ProviderUS = 11
	ProviderSH = 21
	ProviderSZ = 22
)

var providerMarkets = map[int]Market{
	ProviderHK: HK,
	ProviderUS: US,
	ProviderSH: SH,
	ProviderSZ: SZ,
}

// ProviderID returns the gateway market id for a market
func ProviderID(m Market) int {
	for id, market := range providerMarkets {
		if market == m {
			return id
		}
	}
	return 0
}

func parseMarket(s string) (Market, bool) {
	switch Market(s) {
	case HK, US, SH, SZ:
		return Market(s), true
	}
	return "", false
}

// Normalize maps a user-entered identifier to its canonical "MARKET.CODE"
// form. It is case-insensitive and idempotent.
//
//	9988, 09988.HK, HK.09988, hk9988  -> HK.09988
//	AAPL, aapl.us                     -> US.AAPL
//	600519                            -> SH.600519
func Normalize(input string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(input))
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidSymbol)
	}

	if left, right, ok := strings.Cut(s, "."); ok {
		if m, ok := parseMarket(left); ok {
			return qualify(m, right, input)
		}
		if m, ok := parseMarket(right); ok {
			return qualify(m, left, input)
		}
		// Class shares such as BRK.B carry a dot but no market
		if isAlpha(left) && isAlpha(right) && len(right) <= 2 {
			return qualify(US, s, input)
		}
		return "", fmt.Errorf("%w: %q has no known market", ErrInvalidSymbol, input)
	}

	// No separator: market glued to either end of a numeric code
	if len(s) > 2 {
		if m, ok := parseMarket(s[:2]); ok && isDigits(s[2:]) {
			return qualify(m, s[2:], input)
		}
		if m, ok := parseMarket(s[len(s)-2:]); ok && isDigits(s[:len(s)-2]) {
			return qualify(m, s[:len(s)-2], input)
		}
	}

	if isDigits(s) {
		return qualify(defaultNumericMarket(s), s, input)
	}
	if isAlphaNum(s) {
		return qualify(US, s, input)
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, input)
}

// FromProvider re-keys a gateway response (bare code plus numeric market id)
func FromProvider(marketID int, code string) (string, error) {
	m, ok := providerMarkets[marketID]
	if !ok {
		return "", fmt.Errorf("%w: unknown provider market %d for %q", ErrInvalidSymbol, marketID, code)
	}
	return qualify(m, strings.ToUpper(strings.TrimSpace(code)), code)
}

// Split returns the market and code of a canonical symbol
func Split(canonical string) (Market, string, error) {
	normalized, err := Normalize(canonical)
	if err != nil {
		return "", "", err
	}
	left, right, _ := strings.Cut(normalized, ".")
	return Market(left), right, nil
}

func qualify(m Market, code, input string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("%w: %q has no code", ErrInvalidSymbol, input)
	}
	switch m {
	case HK:
		// Numeric stock codes pad to 5 digits, contract codes are kept as-is
		if isDigits(code) {
			if len(code) > 5 {
				trimmed := strings.TrimLeft(code, "0")
				if len(trimmed) > 5 {
					return "", fmt.Errorf("%w: %q is not an HK code", ErrInvalidSymbol, input)
				}
				code = trimmed
			}
			code = strings.Repeat("0", 5-len(code)) + code
		}
	case SH, SZ:
		if isDigits(code) && len(code) != 6 {
			return "", fmt.Errorf("%w: %q is not a 6-digit mainland code", ErrInvalidSymbol, input)
		}
	}
	if !isSymbolCode(code) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, input)
	}
	return string(m) + "." + code, nil
}

// defaultNumericMarket routes a bare numeric code. Six digits are read as a
// mainland code (SZ.000001 is a real listing), so a zero-padded HK code like
// 009988 needs its HK prefix or its natural 4-5 digit form.
func defaultNumericMarket(code string) Market {
	if len(code) == 6 {
		switch code[0] {
		case '6', '9':
			return SH
		case '0', '2', '3':
			return SZ
		}
	}
	return HK
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func isAlphaNum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// isSymbolCode allows dotted class shares on top of alphanumerics
func isSymbolCode(s string) bool {
	for _, part := range strings.Split(s, ".") {
		if !isAlphaNum(part) {
			return false
		}
	}
	return true
}
