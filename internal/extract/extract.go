// Package extract pulls vehicle and contact details out of free text.
package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"imobot-backend/internal/domain"
)

// Brands are the vehicle makes recognized in free text, checked in order.
var Brands = []string{
	"toyota", "peugeot", "renault", "volkswagen", "hyundai", "kia",
	"nissan", "ford", "citroen", "dacia", "seat", "skoda", "suzuki",
	"mercedes", "bmw", "audi", "chevrolet", "fiat", "opel",
}

var (
	yearRe  = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	phoneRe = regexp.MustCompile(`(?:\+213|0)[567]\d{8}`)
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	modelRes = make(map[string]*regexp.Regexp, len(Brands))
)

func init() {
	for _, b := range Brands {
		modelRes[b] = regexp.MustCompile(regexp.QuoteMeta(b) + `\s+(\w+)`)
	}
}

// Vehicle finds a year, a known brand and the word following that brand.
// Any field it cannot find is left empty.
func Vehicle(text string) domain.VehicleInfo {
	var v domain.VehicleInfo
	if m := yearRe.FindStringSubmatch(text); m != nil {
		v.Year = m[1]
	}
	lower := strings.ToLower(text)
	for _, b := range Brands {
		if !strings.Contains(lower, b) {
			continue
		}
		v.Brand = capitalize(b)
		if m := modelRes[b].FindStringSubmatch(lower); m != nil {
			v.Model = capitalize(m[1])
		}
		break
	}
	return v
}

// ContactInfo is what Contact found in a message.
type ContactInfo struct {
	Phone string
	Email string
}

// Empty reports whether neither a phone nor an email was found.
func (c ContactInfo) Empty() bool { return c.Phone == "" && c.Email == "" }

// Contact finds an Algerian mobile number and/or an email address.
func Contact(text string) ContactInfo {
	return ContactInfo{
		Phone: phoneRe.FindString(text),
		Email: emailRe.FindString(text),
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[n:])
}
