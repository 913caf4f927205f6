package lifecycle

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// MoneyFormat renders amounts with locale digit grouping.
type MoneyFormat struct {
	printer *message.Printer
	symbol  string
}

// NewMoneyFormat builds a formatter for a BCP 47 locale such as "en-IN".
func NewMoneyFormat(locale, symbol string) MoneyFormat {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return MoneyFormat{printer: message.NewPrinter(tag), symbol: symbol}
}

func (f MoneyFormat) Format(a Amount) string {
	p := f.printer
	if p == nil {
		p = message.NewPrinter(language.English)
	}
	return f.symbol + p.Sprint(number.Decimal(a.Float(), number.MaxFractionDigits(2)))
}
