package template

import (
	"strings"

	"github.com/brianvoe/gofakeit/v7"
)

// Faker produces fake data for {{faker.<selector>}} placeholders.
type Faker interface {
	Fake(selector string) (any, bool)
}

// fakerAliases maps common dotted selectors onto gofakeit generate tags.
var fakerAliases = map[string]string{
	"person.firstName":   "{firstname}",
	"person.lastName":    "{lastname}",
	"person.fullName":    "{name}",
	"person.jobTitle":    "{jobtitle}",
	"internet.email":     "{email}",
	"internet.username":  "{username}",
	"internet.url":       "{url}",
	"internet.ip":        "{ipv4address}",
	"internet.password":  "{password}",
	"phone.number":       "{phone}",
	"location.city":      "{city}",
	"location.country":   "{country}",
	"location.street":    "{street}",
	"location.zipCode":   "{zip}",
	"company.name":       "{company}",
	"commerce.product":   "{productname}",
	"commerce.price":     "{price:1,1000}",
	"lorem.word":         "{word}",
	"lorem.sentence":     "{sentence:10}",
	"string.uuid":        "{uuid}",
	"number.int":         "{number:1,1000000}",
	"finance.creditCard": "{creditcardnumber}",
	"date.past":          "{pastdate}",
	"date.future":        "{futuredate}",
}

// GoFakeit resolves selectors with github.com/brianvoe/gofakeit.
type GoFakeit struct{}

func NewGoFakeit() *GoFakeit {
	return &GoFakeit{}
}

// Fake resolves the selector through the alias table first, then falls back
// to the lower-cased last segment as a gofakeit function name
// (faker.email, faker.person.firstname).
func (g *GoFakeit) Fake(selector string) (any, bool) {
	tag, ok := fakerAliases[selector]
	if !ok {
		segments := SplitPath(selector)
		name := strings.ToLower(segments[len(segments)-1])
		if gofakeit.GetFuncLookup(name) == nil {
			return nil, false
		}
		tag = "{" + name + "}"
	}

	v, err := gofakeit.Generate(tag)
	if err != nil {
		return nil, false
	}
	return v, true
}
