// Package money formats amounts stored in cents.
package money

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.French)

// CLDR uses narrow no-break spaces for French grouping; PDF core fonts
// cannot draw them.
var spaces = strings.NewReplacer("\u202f", " ", "\u00a0", " ")

// Euros renders cents as "1 290,00 €".
func Euros(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	amount := printer.Sprint(number.Decimal(float64(cents)/100, number.Scale(2)))
	return sign + spaces.Replace(amount) + " €"
}
