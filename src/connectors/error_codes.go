package connectors

import "fmt"

// Error codes returned by the Binance futures trading endpoints that this
// client cares about. The full catalogue is much longer; only codes that
// influence control flow or that show up routinely in operation are listed.
const (
	CodeUnknownOrder        = -2011 // unknown order / already closed
	CodeOrderWouldTrigger   = -2021 // order would immediately trigger
	CodeReduceOnlyReject    = -2022 // reduce-only order rejected
	CodeInvalidTimestamp    = -1021 // timestamp outside recvWindow
	CodeInvalidSignature    = -1022 // signature for this request is not valid
	CodeTooManyRequests     = -1003 // request weight exceeded
	CodeInvalidSymbol       = -1121 // invalid symbol
	CodePriceFilterFailure  = -4016 // limit price above/below cap/floor
	CodeMinNotionalFailure  = -4164 // order notional under minimum
	CodePositionSideNoMatch = -4061 // order side does not match position mode
)

// BinanceErrorCodes maps futures API error codes to short human-readable names.
var BinanceErrorCodes = map[int]string{
	CodeTooManyRequests:     "TOO_MANY_REQUESTS",
	CodeInvalidTimestamp:    "INVALID_TIMESTAMP",
	CodeInvalidSignature:    "INVALID_SIGNATURE",
	CodeInvalidSymbol:       "INVALID_SYMBOL",
	CodeUnknownOrder:        "UNKNOWN_ORDER",
	CodeOrderWouldTrigger:   "ORDER_WOULD_IMMEDIATELY_TRIGGER",
	CodeReduceOnlyReject:    "REDUCE_ONLY_REJECT",
	CodePriceFilterFailure:  "PRICE_FILTER_FAILURE",
	CodePositionSideNoMatch: "POSITION_SIDE_NOT_MATCH",
	CodeMinNotionalFailure:  "MIN_NOTIONAL",
	-1000:                   "UNKNOWN",
	-1001:                   "DISCONNECTED",
	-1002:                   "UNAUTHORIZED",
	-1015:                   "TOO_MANY_ORDERS",
	-1111:                   "BAD_PRECISION",
	-2010:                   "NEW_ORDER_REJECTED",
	-2013:                   "NO_SUCH_ORDER",
	-2014:                   "BAD_API_KEY_FMT",
	-2015:                   "REJECTED_MBX_KEY",
	-2018:                   "BALANCE_NOT_SUFFICIENT",
	-2019:                   "MARGIN_NOT_SUFFICIENT",
	-2020:                   "UNABLE_TO_FILL",
	-4003:                   "QUANTITY_LESS_THAN_ZERO",
	-4014:                   "PRICE_NOT_INCREASED_BY_TICK_SIZE",
}

// GetErrorMsg returns a short name for a given Binance error code.
// Unknown codes are rendered generically so they still land in logs.
func GetErrorMsg(code int) string {
	if msg, ok := BinanceErrorCodes[code]; ok {
		return msg
	}
	return fmt.Sprintf("UNKNOWN_BINANCE_ERROR_%d", code)
}
