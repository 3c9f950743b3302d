// Package outbound builds links to external services: hosted payment pages
// and the WhatsApp support chat. Nothing here calls those services.
package outbound

import (
	"net/url"
	"strings"
)

type PaymentType string

const (
	PaymentBreakfast PaymentType = "breakfast"
	PaymentLunch     PaymentType = "lunch"
	PaymentDinner    PaymentType = "dinner"
	PaymentDonation  PaymentType = "donation"
)

const (
	linkSmallMeal = "https://rzp.io/rzp/1oUmcRy3"
	linkFullMeal  = "https://rzp.io/rzp/bsVwLwNS"
)

// PaymentLink is a hosted checkout page and its amount in rupees.
type PaymentLink struct {
	Type   PaymentType `json:"type"`
	URL    string      `json:"url"`
	Amount int         `json:"amount"`
}

var paymentLinks = map[PaymentType]PaymentLink{
	PaymentBreakfast: {Type: PaymentBreakfast, URL: linkSmallMeal, Amount: 30},
	PaymentLunch:     {Type: PaymentLunch, URL: linkFullMeal, Amount: 80},
	PaymentDinner:    {Type: PaymentDinner, URL: linkFullMeal, Amount: 80},
	PaymentDonation:  {Type: PaymentDonation, URL: linkSmallMeal, Amount: 100},
}

// PaymentLinkFor returns the page for t. Unknown types get the donation page.
func PaymentLinkFor(t PaymentType) PaymentLink {
	if link, ok := paymentLinks[PaymentType(strings.ToLower(string(t)))]; ok {
		return link
	}
	return paymentLinks[PaymentDonation]
}

const defaultSupportText = "Hello I need help"

// WhatsAppLink opens a chat with phone prefilled with text.
func WhatsAppLink(phone, text string) string {
	phone = strings.TrimPrefix(strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == '+' {
			return r
		}
		return -1
	}, phone), "+")
	if text == "" {
		text = defaultSupportText
	}
	return "https://wa.me/" + phone + "?text=" + url.PathEscape(text)
}
