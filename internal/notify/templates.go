// Package notify sends best-effort email notifications for donation and
// registration events.
package notify

import (
	"fmt"
	"strconv"
)

// Template names the kind of message rendered into the shared mail template.
type Template string

const (
	TemplateWelcome        Template = "welcome"
	TemplateDonationPosted Template = "donation_posted"
	TemplateClaimNotify    Template = "claim_notify"
)

const defaultUserType = "volunteer"

// Message is one rendered email. Params are the flat template variables.
type Message struct {
	Template Template
	ToEmail  string
	Params   map[string]string
}

func Welcome(fromName, name, email, userType string) Message {
	if userType == "" {
		userType = defaultUserType
	}
	return Message{
		Template: TemplateWelcome,
		ToEmail:  email,
		Params: map[string]string{
			"to_name":   name,
			"to_email":  email,
			"user_type": userType,
			"from_name": fromName,
			"message": fmt.Sprintf("Welcome to Feedra! We're thrilled to have you join our Food Saver Network. "+
				"As a %s, your contribution helps reduce food waste and support communities in India!", userType),
		},
	}
}

func DonationPosted(fromName, donorName, donorEmail string, quantity float64, foodType, location string) Message {
	qty := formatQuantity(quantity)
	return Message{
		Template: TemplateDonationPosted,
		ToEmail:  donorEmail,
		Params: map[string]string{
			"to_name":          donorName,
			"to_email":         donorEmail,
			"from_name":        fromName,
			"donation_details": fmt.Sprintf("%skg of %s at %s", qty, foodType, location),
			"message": fmt.Sprintf("Your donation has been posted! Thank you for helping reduce food waste. "+
				"Your %skg of %s will help families in need.", qty, foodType),
		},
	}
}

func ClaimNotify(fromName, donorName, donorEmail, claimerName string, quantity float64, foodType string) Message {
	return Message{
		Template: TemplateClaimNotify,
		ToEmail:  donorEmail,
		Params: map[string]string{
			"to_name":   donorName,
			"to_email":  donorEmail,
			"from_name": fromName,
			"message": fmt.Sprintf("Great news! %s has claimed your donation of %skg of %s. "+
				"They will contact you soon. Thank you!", claimerName, formatQuantity(quantity), foodType),
		},
	}
}

// formatQuantity prints 5 as "5" and 2.5 as "2.5".
func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
