package domain

import "strings"

// NormalizeSymbol trims and upper-cases a ticker symbol
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return "", ErrInvalidSymbol
	}
	return s, nil
}
