package alerts

import (
	"math/rand/v2"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"tcg-companion/models"
)

var printer = message.NewPrinter(language.English)

// FormatPrice renders a USD price with thousands separators, e.g. "$1,204.50".
func FormatPrice(v float64) string {
	return printer.Sprintf("$%.2f", v)
}

var templates = map[models.ThresholdType][]string{
	models.ThresholdAboveValue: {
		"🚀 %s just climbed to %s, above your %s target!",
		"📈 %s is trading at %s. That's over your %s alert.",
		"🔥 Heads up! %s hit %s, past your %s line.",
	},
	models.ThresholdBelowValue: {
		"📉 %s dropped to %s, under your %s target.",
		"🛒 Buying window: %s is down to %s (alert at %s).",
		"💸 %s fell to %s, below your %s alert.",
	},
	models.ThresholdPercentChange: {
		"⚡ %s moved %s to %s in your watch window.",
		"📊 Big swing: %s changed %s and now sits at %s.",
		"👀 %s shifted %s. Current price: %s.",
	},
}

// buildMessage picks a random template for the alert type and fills it in.
func buildMessage(r *rand.Rand, t models.ThresholdType, cardName string, price, threshold float64, pct *float64) string {
	options := templates[t]
	tmpl := options[r.IntN(len(options))]

	if t == models.ThresholdPercentChange {
		change := "0%"
		if pct != nil {
			change = printer.Sprintf("%+.1f%%", *pct)
		}
		return printer.Sprintf(tmpl, cardName, change, FormatPrice(price))
	}
	return printer.Sprintf(tmpl, cardName, FormatPrice(price), FormatPrice(threshold))
}

func buildTitle(cardName string) string {
	return "Price alert: " + cardName
}
