// Package sanitize strips markup from user input before it is stored,
// emailed or forwarded.
package sanitize

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	scriptBlock = regexp.MustCompile(`(?is)<script\b.*?</script\s*>`)
	styleBlock  = regexp.MustCompile(`(?is)<style\b.*?</style\s*>`)
	anyTag      = regexp.MustCompile(`<[^>]+>`)
	emailShape  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nonPhone    = regexp.MustCompile(`[^0-9+\-() ]`)
	nonDigit    = regexp.MustCompile(`\D`)

	entityDecoder = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#x27;", "'",
		"&#x2F;", "/",
	)
	htmlEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#x27;",
		"/", "&#x2F;",
	)
)

func stripTags(s string) string {
	s = scriptBlock.ReplaceAllString(s, "")
	s = styleBlock.ReplaceAllString(s, "")
	s = anyTag.ReplaceAllString(s, "")
	return strings.TrimSpace(entityDecoder.Replace(s))
}

// String removes script/style blocks and tags. Unless allowFormatting is
// set the remaining text is HTML-escaped.
func String(s string, allowFormatting bool) string {
	if s == "" {
		return ""
	}
	stripped := stripTags(s)
	if allowFormatting {
		return stripped
	}
	return htmlEscaper.Replace(stripped)
}

// Email lowercases an address, or returns "" when it does not look like one.
func Email(s string) string {
	cleaned := strings.ToLower(strings.TrimSpace(String(s, false)))
	if !emailShape.MatchString(cleaned) {
		return ""
	}
	return cleaned
}

// Phone keeps digits, '+', '-', parentheses and spaces.
func Phone(s string) string {
	return strings.TrimSpace(nonPhone.ReplaceAllString(String(s, false), ""))
}

// URL returns s only for http, https and mailto URLs.
func URL(s string) string {
	cleaned := strings.TrimSpace(stripTags(s))
	if cleaned == "" {
		return ""
	}
	u, err := url.Parse(cleaned)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return ""
		}
		return cleaned
	case "mailto":
		return cleaned
	}
	return ""
}

// Map sanitizes every string in a decoded JSON object. Keys containing
// "email", "phone", "url" or "website" get the matching field rules.
func Map(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = value(k, v)
	}
	return out
}

func value(key string, v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		lk := strings.ToLower(key)
		switch {
		case strings.Contains(lk, "email"):
			return Email(t)
		case strings.Contains(lk, "phone"):
			return Phone(t)
		case strings.Contains(lk, "url"), strings.Contains(lk, "website"):
			return URL(t)
		default:
			return String(t, false)
		}
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			if s, ok := item.(string); ok {
				out[i] = String(s, false)
			} else if nested, ok := item.(map[string]interface{}); ok {
				out[i] = Map(nested)
			} else {
				out[i] = item
			}
		}
		return out
	case map[string]interface{}:
		return Map(t)
	default:
		return v
	}
}

// FormatPhoneUS renders the last 10 digits as "+1 XXX XXX XXXX". Inputs with
// fewer digits are returned unchanged.
func FormatPhoneUS(phone string) string {
	digits := nonDigit.ReplaceAllString(phone, "")
	if len(digits) < 10 {
		return phone
	}
	d := digits[len(digits)-10:]
	return "+1 " + d[:3] + " " + d[3:6] + " " + d[6:]
}
