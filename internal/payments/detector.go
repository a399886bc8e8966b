// Package payments turns messages posted by the payment-processor bot into
// structured matches. A match is only a signal for admins; nothing here
// approves a fee.
package payments

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Match is a detected payment: who paid and how much.
type Match struct {
	Username string
	Amount   decimal.Decimal
}

// Detector recognises payment notifications of the form
// "@alice sent 5 USDT" or "Received 5.00 USDT from @alice".
type Detector struct {
	patterns []*regexp.Regexp
	currency string
}

func NewDetector(currency string) *Detector {
	if currency == "" {
		currency = "USDT"
	}
	c := regexp.QuoteMeta(currency)
	return &Detector{
		currency: currency,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)@(?P<user>[A-Za-z0-9_]{3,32})\s+(?:sent|paid|tipped|transferred)\s+(?:you\s+)?(?P<amount>\d+(?:[.,]\d+)?)\s*` + c),
			regexp.MustCompile(`(?i)received\s+(?P<amount>\d+(?:[.,]\d+)?)\s*` + c + `\s+from\s+@(?P<user>[A-Za-z0-9_]{3,32})`),
		},
	}
}

// Detect returns the match found in text, or false.
func (d *Detector) Detect(text string) (Match, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Match{}, false
	}
	for _, re := range d.patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		var user, amount string
		for i, name := range re.SubexpNames() {
			switch name {
			case "user":
				user = m[i]
			case "amount":
				amount = strings.Replace(m[i], ",", ".", 1)
			}
		}
		value, err := decimal.NewFromString(amount)
		if err != nil || !value.IsPositive() {
			continue
		}
		return Match{Username: user, Amount: value}, true
	}
	return Match{}, false
}
