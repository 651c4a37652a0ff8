// Package mapping projects resolved address parts onto destination form
// fields and keeps the field-to-part configuration in sync with the form.
package mapping

// Part names one semantic piece of a resolved address. The empty Part
// means "do not write this field".
type Part string

const (
	Unmapped               Part = ""
	Street                 Part = "street"
	HouseNumber            Part = "houseNumber"
	HouseNumberAddition    Part = "houseNumberAddition"
	City                   Part = "city"
	StreetAndHouseNumber   Part = "streetAndHouseNumber"
	Postcode               Part = "postcode"
	HouseNumberAndAddition Part = "houseNumberAndAddition"
	Province               Part = "province"
)

// Parts lists every mappable part in the order the admin screen shows them.
var Parts = []Part{
	Street,
	HouseNumber,
	HouseNumberAddition,
	City,
	StreetAndHouseNumber,
	Postcode,
	HouseNumberAndAddition,
	Province,
}

var partLabels = map[Part]string{
	Unmapped:               "-- Not mapped --",
	Street:                 "Street name only",
	HouseNumber:            "House number only",
	HouseNumberAddition:    "House number addition",
	City:                   "City",
	StreetAndHouseNumber:   "Street + House number combined",
	Postcode:               "Postcode",
	HouseNumberAndAddition: "House number + addition combined",
	Province:               "Province/State",
}

// Label returns the human readable name of p.
func (p Part) Label() string {
	return partLabels[p]
}

// Known reports whether p is Unmapped or one of Parts.
func (p Part) Known() bool {
	_, ok := partLabels[p]
	return ok
}

// StandardFields are the checkout address fields every form has.
var StandardFields = []string{"address_1", "address_2", "postcode", "city", "state"}

// PartSource yields the value of each part for one resolved address.
// A part without a value returns "".
type PartSource interface {
	Part(p Part) string
}
