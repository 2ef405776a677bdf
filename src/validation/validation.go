package validation

import (
	"context"
	"fmt"
	"strings"

	logger "github.com/sirupsen/logrus"
)

// Conservative defaults used when the exchange cannot be asked for precision.
// Typical BTCUSDT values: price=2, qty=3.
const (
	DefaultPricePrecision    = 2
	DefaultQuantityPrecision = 3
)

// ValidationError reports bad caller input. It is always raised before any
// network call and is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Side validates and normalizes an order side to BUY or SELL.
func Side(side string) (string, error) {
	upper := strings.ToUpper(strings.TrimSpace(side))
	if upper != "BUY" && upper != "SELL" {
		return "", &ValidationError{Field: "side", Message: fmt.Sprintf("%q must be BUY or SELL", side)}
	}
	return upper, nil
}

// Positive ensures a numeric input is strictly greater than zero.
func Positive(value float64, name string) (float64, error) {
	if value <= 0 {
		return 0, &ValidationError{Field: name, Message: fmt.Sprintf("must be greater than 0, received %v", value)}
	}
	return value, nil
}

// PositiveInt ensures an integer input is strictly greater than zero.
func PositiveInt(value int, name string) (int, error) {
	if value <= 0 {
		return 0, &ValidationError{Field: name, Message: fmt.Sprintf("must be greater than 0, received %d", value)}
	}
	return value, nil
}

// Symbol validates an instrument identifier and normalizes it to uppercase.
func Symbol(symbol string) (string, error) {
	trimmed := strings.TrimSpace(symbol)
	if trimmed == "" {
		return "", &ValidationError{Field: "symbol", Message: "must not be empty"}
	}
	for _, r := range trimmed {
		isDigit := r >= '0' && r <= '9'
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !isDigit && !isAlpha {
			return "", &ValidationError{Field: "symbol", Message: fmt.Sprintf("%q must be alphanumeric", symbol)}
		}
	}
	return strings.ToUpper(trimmed), nil
}

// PrecisionSource is the slice of the exchange gateway needed to resolve
// per-symbol precision.
type PrecisionSource interface {
	SymbolPrecision(ctx context.Context, symbol string) (pricePrecision, quantityPrecision int, err error)
}

// SymbolPrecision resolves price/quantity precision for a symbol, falling back
// to conservative defaults on any gateway failure so callers can keep going.
func SymbolPrecision(ctx context.Context, source PrecisionSource, symbol string, log *logger.Entry) (int, int) {
	pricePrecision, qtyPrecision, err := source.SymbolPrecision(ctx, symbol)
	if err != nil {
		log.WithError(err).
			WithField("symbol", symbol).
			Warnf("could not fetch symbol precision, using defaults (%d, %d)",
				DefaultPricePrecision, DefaultQuantityPrecision)
		return DefaultPricePrecision, DefaultQuantityPrecision
	}
	return pricePrecision, qtyPrecision
}
