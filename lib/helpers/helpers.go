package helpers

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func EscapeMarkdownV2(text string) string {
	charactersToEscape := []string{"\\", ".", "-", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "=", "|", "{", "}", "!"}

	for _, char := range charactersToEscape {
		text = strings.ReplaceAll(text, char, "\\"+char)
	}
	return text
}

// FormatPriceUS prints a price with thousands separators and a precision
// that depends on its magnitude.
func FormatPriceUS(price decimal.Decimal) string {
	decimals := 6

	f := price.InexactFloat64()
	if f >= 1000 {
		decimals = 0
	} else if f > 1.2 {
		decimals = 2
	} else if f < 0.00001 {
		decimals = 8
	}

	p := message.NewPrinter(language.English)
	return p.Sprintf("%.*f", decimals, f)
}
