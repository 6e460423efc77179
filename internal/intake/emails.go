package intake

import (
	"fmt"
	"strings"

	"github.com/crexpressinc/formsgate/internal/sanitize"
	"github.com/crexpressinc/formsgate/internal/services/mailer"
	"github.com/crexpressinc/formsgate/internal/validation"
)

type leadEmail struct {
	subject string
	replyTo string
	body    mailer.Email
}

const replyNotice = "Please respond to this quote request within 24 hours."

// serviceLabels are the service selections offered on the quote forms
var serviceLabels = map[string]string{
	"bonded-warehouse":       "Bonded Warehouse Storage",
	"container-transloading": "Container Transloading",
	"customs-brokerage":      "Customs Brokerage",
	"drayage":                "Intermodal Drayage",
	"air-cargo":              "Air Cargo Services",
}

func serviceLabel(service string) string {
	if l, ok := serviceLabels[service]; ok {
		return l
	}
	if service != "" {
		return service
	}
	return "General Inquiry"
}

// t strips markup. Escaping is left to the email template.
func t(s string) string {
	return sanitize.String(s, true)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func contactRows(name, email, phone, company string) []mailer.Row {
	rows := []mailer.Row{{Label: "Name", Value: t(name)}}
	if company != "" {
		rows = append(rows, mailer.Row{Label: "Company", Value: t(company)})
	}
	if e := sanitize.Email(email); e != "" {
		rows = append(rows, mailer.Row{Label: "Email", Value: e, Href: "mailto:" + e})
	}
	if phone != "" {
		rows = append(rows, mailer.Row{Label: "Phone", Value: sanitize.Phone(phone)})
	}
	return rows
}

func messageSection(title, text string) []mailer.Section {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []mailer.Section{{Title: title, Text: t(text)}}
}

func buildEmail(form interface{}) (*leadEmail, error) {
	switch f := form.(type) {
	case *validation.ContactForm:
		return &leadEmail{
			subject: fmt.Sprintf("New Contact Form: %s - %s", orDefault(t(f.Category), "General Inquiry"), t(f.Name)),
			replyTo: sanitize.Email(f.Email),
			body: mailer.Email{
				Heading: "New Contact Form Submission",
				Intro:   "Someone reached out through the website contact form.",
				Sections: append([]mailer.Section{
					{Title: "Contact Information", Rows: contactRows(f.Name, f.Email, f.Phone, "")},
					{Title: "Inquiry", Rows: mailer.Rows("Category", t(f.Category), "Service", t(f.Service))},
				}, messageSection("Message", f.Message)...),
			},
		}, nil

	case *validation.ServiceQuoteForm:
		service := orDefault(t(f.ServiceName), t(f.Service))
		return &leadEmail{
			subject: fmt.Sprintf("New Service Quote Request: %s - %s", service, t(f.Name)),
			replyTo: sanitize.Email(f.Email),
			body: mailer.Email{
				Heading: "New Service Quote Request",
				Intro:   "A quote was requested from a service page.",
				Sections: append([]mailer.Section{
					{Title: "Contact Information", Rows: contactRows(f.Name, f.Email, f.Phone, f.Company)},
					{Title: "Service Requested", Rows: mailer.Rows(
						"Service", orDefault(service, serviceLabel(f.Service)),
						"Service type", t(f.ServiceType),
					)},
				}, messageSection("Message / Special Requirements", f.Message)...),
				Notice: replyNotice,
			},
		}, nil

	case *validation.LocationQuoteForm:
		return &leadEmail{
			subject: fmt.Sprintf("New Location Quote Request: %s - %s", t(f.CityName), t(f.Name)),
			replyTo: sanitize.Email(f.Email),
			body: mailer.Email{
				Heading: "New Location Quote Request",
				Intro:   "Location: " + orDefault(t(f.CityName), "Not specified"),
				Sections: append([]mailer.Section{
					{Title: "Contact Information", Rows: contactRows(f.Name, f.Email, f.Phone, f.Company)},
				}, messageSection("Message / Special Requirements", f.Message)...),
				Notice: replyNotice,
			},
		}, nil

	case *validation.DrayageQuoteForm:
		subject := "New Drayage Quote Request"
		if f.CityName != "" {
			subject += " - " + t(f.CityName)
		}
		return &leadEmail{
			subject: subject + " - " + t(f.Name),
			replyTo: sanitize.Email(f.Email),
			body: mailer.Email{
				Heading: "New Drayage Quote Request",
				Intro:   "Location page: " + orDefault(t(f.CityName), "Not specified"),
				Sections: append([]mailer.Section{
					{Title: "Contact Information", Rows: contactRows(f.Name, f.Email, f.Phone, f.Company)},
					{Title: "Shipment", Rows: mailer.Rows(
						"City", t(f.City),
						"State", t(f.State),
						"Service needed", serviceLabel(t(f.ServiceNeeded)),
					)},
				}, messageSection("Message / Special Requirements", f.Message)...),
				Notice: replyNotice,
			},
		}, nil

	case *validation.JobApplicationForm:
		name := t(f.FirstName) + " " + t(f.LastName)
		return &leadEmail{
			subject: fmt.Sprintf("New Job Application: %s - %s", t(f.JobTitle), name),
			replyTo: sanitize.Email(f.Email),
			body: mailer.Email{
				Heading: "New Job Application",
				Intro:   fmt.Sprintf("Position: %s | Department: %s", orDefault(t(f.JobTitle), "Not specified"), orDefault(t(f.Department), "Not specified")),
				Sections: append([]mailer.Section{
					{Title: "Personal Information", Rows: contactRows(name, f.Email, f.Phone, "")},
					{Title: "Experience", Rows: mailer.Rows(
						"Experience", t(f.Experience),
						"LinkedIn", sanitize.URL(f.LinkedinURL),
						"Portfolio", sanitize.URL(f.PortfolioURL),
					)},
				}, messageSection("Cover Letter", f.CoverLetter)...),
			},
		}, nil

	case *validation.DriverApplicationForm:
		name := t(f.FirstName) + " " + t(f.LastName)
		address := strings.TrimSpace(strings.Join(nonEmpty(t(f.Address), t(f.City), strings.TrimSpace(t(f.State)+" "+t(f.ZipCode))), ", "))
		return &leadEmail{
			subject: fmt.Sprintf("New Driver Application: %s - %s", orDefault(t(f.JobTitle), "CDL Driver"), name),
			replyTo: sanitize.Email(f.Email),
			body: mailer.Email{
				Heading: "New Driver Application",
				Intro:   "A CDL driver applied through the careers page.",
				Sections: append([]mailer.Section{
					{Title: "Personal Information", Rows: append(contactRows(name, f.Email, f.Phone, ""), mailer.Rows("Address", address)...)},
					{Title: "License & Experience", Rows: mailer.Rows(
						"CDL number", t(f.CDLNumber),
						"CDL class", t(f.CDLClass),
						"Endorsements", t(f.Endorsements),
						"Years of experience", t(f.YearsExperience),
						"Availability", t(f.Availability),
					)},
					{Title: "Driving Record", Rows: mailer.Rows(
						"Violations", orDefault(t(f.Violations), "None reported"),
						"Accidents", orDefault(t(f.Accidents), "None reported"),
					)},
				}, messageSection("Additional Information", f.AdditionalInfo)...),
			},
		}, nil
	}
	return nil, fmt.Errorf("%w: no email for %T", ErrUnknownKind, form)
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
