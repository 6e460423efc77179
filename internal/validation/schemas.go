package validation

// Lead forms. Field lengths follow the public website forms.

// NewsletterForm is a newsletter subscription
type NewsletterForm struct {
	Name           string `json:"name" validate:"required,max=100" label:"Name"`
	Email          string `json:"email" validate:"required,email,max=255" label:"Email"`
	RecaptchaToken string `json:"recaptchaToken" validate:"required" label:"reCAPTCHA"`
}

// ContactForm is the general contact form
type ContactForm struct {
	Name           string `json:"name" validate:"required,max=100" label:"Name"`
	Email          string `json:"email" validate:"required,email,max=255" label:"Email"`
	Phone          string `json:"phone" validate:"omitempty,min=10,max=30" label:"Phone number"`
	Message        string `json:"message" validate:"required,max=10000" label:"Message"`
	Service        string `json:"service" validate:"omitempty,max=100" label:"Service name"`
	Category       string `json:"category" validate:"omitempty,max=100" label:"Category"`
	RecaptchaToken string `json:"recaptchaToken" validate:"required" label:"reCAPTCHA"`
}

// ServiceQuoteForm requests a quote for a service page
type ServiceQuoteForm struct {
	Name           string `json:"name" validate:"required,max=100" label:"Name"`
	Email          string `json:"email" validate:"required,email,max=255" label:"Email"`
	Phone          string `json:"phone" validate:"omitempty,min=10,max=30" label:"Phone number"`
	Company        string `json:"company" validate:"omitempty,max=200" label:"Company name"`
	Service        string `json:"service" validate:"omitempty,max=100" label:"Service selection"`
	ServiceName    string `json:"serviceName" validate:"omitempty,max=200" label:"Service name"`
	ServiceType    string `json:"serviceType" validate:"omitempty,max=200" label:"Service type"`
	Message        string `json:"message" validate:"omitempty,max=10000" label:"Message"`
	RecaptchaToken string `json:"recaptchaToken" validate:"required" label:"reCAPTCHA"`
}

// LocationQuoteForm requests a quote from a city page
type LocationQuoteForm struct {
	Name           string `json:"name" validate:"required,max=100" label:"Name"`
	Email          string `json:"email" validate:"required,email,max=255" label:"Email"`
	Phone          string `json:"phone" validate:"omitempty,min=10,max=30" label:"Phone number"`
	Company        string `json:"company" validate:"omitempty,max=200" label:"Company name"`
	CityName       string `json:"cityName" validate:"omitempty,max=100" label:"City name"`
	Message        string `json:"message" validate:"required,max=10000" label:"Message"`
	RecaptchaToken string `json:"recaptchaToken" validate:"required" label:"reCAPTCHA"`
}

// DrayageQuoteForm requests a drayage quote
type DrayageQuoteForm struct {
	Name           string `json:"name" validate:"required,max=100" label:"Name"`
	Email          string `json:"email" validate:"required,email,max=255" label:"Email"`
	Phone          string `json:"phone" validate:"omitempty,min=10,max=30" label:"Phone number"`
	Company        string `json:"company" validate:"required,max=200" label:"Company"`
	City           string `json:"city" validate:"required,max=100" label:"City"`
	State          string `json:"state" validate:"required,max=50" label:"State"`
	ServiceNeeded  string `json:"serviceNeeded" validate:"required,max=200" label:"Service selection"`
	Message        string `json:"message" validate:"omitempty,max=10000" label:"Message"`
	CityName       string `json:"cityName" validate:"omitempty,max=100" label:"City name"`
	RecaptchaToken string `json:"recaptchaToken" validate:"required" label:"reCAPTCHA"`
}

// JobApplicationForm is an office job application
type JobApplicationForm struct {
	FirstName      string `json:"firstName" validate:"required,max=50" label:"First name"`
	LastName       string `json:"lastName" validate:"required,max=50" label:"Last name"`
	Email          string `json:"email" validate:"required,email,max=255" label:"Email"`
	Phone          string `json:"phone" validate:"omitempty,min=10,max=30" label:"Phone number"`
	JobTitle       string `json:"jobTitle" validate:"omitempty,max=100" label:"Job title"`
	Department     string `json:"department" validate:"omitempty,max=100" label:"Department"`
	Experience     string `json:"experience" validate:"omitempty,max=50" label:"Experience"`
	LinkedinURL    string `json:"linkedinUrl" validate:"omitempty,url,max=500" label:"LinkedIn URL"`
	PortfolioURL   string `json:"portfolioUrl" validate:"omitempty,url,max=500" label:"Portfolio URL"`
	CoverLetter    string `json:"coverLetter" validate:"omitempty,max=10000" label:"Cover letter"`
	RecaptchaToken string `json:"recaptchaToken" validate:"required" label:"reCAPTCHA"`
}

// DriverApplicationForm is a CDL driver application
type DriverApplicationForm struct {
	FirstName       string `json:"firstName" validate:"required,max=50" label:"First name"`
	LastName        string `json:"lastName" validate:"required,max=50" label:"Last name"`
	Email           string `json:"email" validate:"required,email,max=255" label:"Email"`
	Phone           string `json:"phone" validate:"omitempty,min=10,max=30" label:"Phone number"`
	CDLNumber       string `json:"cdlNumber" validate:"omitempty,max=50" label:"CDL number"`
	CDLClass        string `json:"cdlClass" validate:"omitempty,max=20" label:"CDL class"`
	YearsExperience string `json:"yearsExperience" validate:"omitempty,max=50" label:"Years of experience"`
	Address         string `json:"address" validate:"omitempty,max=200" label:"Address"`
	City            string `json:"city" validate:"omitempty,max=100" label:"City"`
	State           string `json:"state" validate:"omitempty,max=50" label:"State"`
	ZipCode         string `json:"zipCode" validate:"omitempty,max=20" label:"Zip code"`
	Endorsements    string `json:"endorsements" validate:"omitempty,max=200" label:"Endorsements"`
	Violations      string `json:"violations" validate:"omitempty,max=1000" label:"Violations field"`
	Accidents       string `json:"accidents" validate:"omitempty,max=1000" label:"Accidents field"`
	Availability    string `json:"availability" validate:"omitempty,max=100" label:"Availability"`
	AdditionalInfo  string `json:"additionalInfo" validate:"omitempty,max=5000" label:"Additional info"`
	JobTitle        string `json:"jobTitle" validate:"omitempty,max=100" label:"Job title"`
	RecaptchaToken  string `json:"recaptchaToken" validate:"required" label:"reCAPTCHA"`
}

// payloadRules are required fields of managed form payloads, by form type
var payloadRules = map[string]map[string]interface{}{
	"CARRIER_ONBOARDING": {
		"companyLegalName":        "required,max=200",
		"primaryContactFirstName": "required,max=100",
		"primaryContactLastName":  "required,max=100",
		"primaryContactEmail":     "required,email,max=255",
		"primaryContactPhone":     "required,min=10,max=30",
		"billingAddressLine1":     "required,max=200",
		"billingCity":             "required,max=100",
		"billingState":            "required,max=50",
		"billingZipCode":          "required,max=20",
		"paymentMethod":           "required,max=100",
	},
	"AXIOM_CARRIER_ONBOARDING": {
		"companyLegalName":     "required,max=200",
		"companyType":          "required,max=100",
		"physicalAddressLine1": "required,max=200",
		"physicalCity":         "required,max=100",
		"physicalState":        "required,max=50",
		"physicalZipCode":      "required,max=20",
	},
	"LOAD_CREATION_REQUEST": {
		"loadNumber": "required,max=100",
	},
}
