package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSubmission(t *testing.T) {
	payload := map[string]interface{}{
		"companyLegalName":        "Acme Freight LLC",
		"mc":                      "123456",
		"primaryContactFirstName": "Dana",
		"primaryContactEmail":     "dana@acme.test",
		"billingCity":             "Chicago",
		"shipmentTypes":           []interface{}{"FTL", "LTL"},
		"favoriteColor":           "blue",
		"invoicingInstructions":   "A very long instruction text that should wrap across several lines of the value column without breaking the layout of the document at all.",
	}

	out, err := RenderSubmission(Document{
		Title:        "Carrier Onboarding",
		SubmissionID: "sub_123",
		SubmittedAt:  time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
		Sections:     SectionsFromPayload(payload),
		Meta:         []Field{{Label: "IP Address", Value: "203.0.113.7"}},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Greater(t, len(out), 1000)
}

func TestRenderSubmissionRequiresID(t *testing.T) {
	_, err := RenderSubmission(Document{})
	assert.Error(t, err)
}

func TestSectionsFromPayloadGroupsOnboardingFields(t *testing.T) {
	sections := SectionsFromPayload(map[string]interface{}{
		"companyLegalName":      "Acme",
		"primaryContactEmail":   "a@b.c",
		"accountsPayableEmail":  "ap@b.c",
		"billingZipCode":        "60601",
		"reviewFrequency":       "Monthly",
		"somethingElse":         true,
		"secondaryContactPhone": "",
	})

	titles := make([]string, len(sections))
	for i, s := range sections {
		titles[i] = s.Title
	}
	assert.Equal(t, []string{
		"Company Information",
		"Primary Contact",
		"Secondary Contact",
		"Accounts Payable",
		"Billing Information",
		"Operations",
		"Additional Information",
	}, titles)
	assert.Equal(t, Field{Label: "Something Else", Value: "Yes"}, sections[6].Fields[0])
}

func TestSectionsFromPayloadGenericForm(t *testing.T) {
	sections := SectionsFromPayload(map[string]interface{}{
		"loadNumber": "L-1",
		"loadAmount": 1250.0,
	})
	require.Len(t, sections, 1)
	assert.Equal(t, "Submission Details", sections[0].Title)
	assert.Equal(t, []Field{
		{Label: "Load Amount", Value: "1250"},
		{Label: "Load Number", Value: "L-1"},
	}, sections[0].Fields)
}

func TestHumanize(t *testing.T) {
	cases := map[string]string{
		"companyLegalName": "Company Legal Name",
		"mc":               "Mc",
		"w9Upload":         "W9 Upload",
		"zip_code":         "Zip Code",
		"SCAC":             "SCAC",
	}
	for in, want := range cases {
		assert.Equal(t, want, Humanize(in), in)
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "No", FormatValue(false))
	assert.Equal(t, "1.5", FormatValue(1.5))
	assert.Equal(t, "a, b", FormatValue([]interface{}{"a", "b"}))
	assert.Equal(t, "Other: No; Woman Owned: Yes", FormatValue(map[string]interface{}{"womanOwned": true, "other": false}))
}
