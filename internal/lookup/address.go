package lookup

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/address-lookup/internal/mapping"
	"github.com/address-lookup/internal/parser"
)

// Address is a resolved postal address. The combined parts are derived on
// demand and never stored.
type Address struct {
	Street              string  `json:"street" bson:"street"`
	HouseNumber         int     `json:"houseNumber" bson:"house_number"`
	HouseNumberAddition *string `json:"houseNumberAddition" bson:"house_number_addition"`
	City                string  `json:"city" bson:"city"`
	Postcode            string  `json:"postcode" bson:"postcode"`
	Province            *string `json:"province" bson:"province"`
}

// HouseNumberAndAddition is "10" or "10 B".
func (a Address) HouseNumberAndAddition() string {
	if a.HouseNumber == 0 {
		return ""
	}
	house := strconv.Itoa(a.HouseNumber)
	if a.HouseNumberAddition != nil {
		house += " " + *a.HouseNumberAddition
	}
	return strings.TrimSpace(house)
}

// StreetAndHouseNumber is "Dorpsstraat 10 B".
func (a Address) StreetAndHouseNumber() string {
	return strings.TrimSpace(a.Street + " " + a.HouseNumberAndAddition())
}

// Formatted is the two line presentation shown instead of the address
// fields: "Dorpsstraat 10\n1234AB Utrecht".
func (a Address) Formatted() string {
	return a.StreetAndHouseNumber() + "\n" + strings.TrimSpace(a.Postcode+" "+a.City)
}

// Part implements mapping.PartSource.
func (a Address) Part(p mapping.Part) string {
	switch p {
	case mapping.Street:
		return a.Street
	case mapping.HouseNumber:
		if a.HouseNumber == 0 {
			return ""
		}
		return strconv.Itoa(a.HouseNumber)
	case mapping.HouseNumberAddition:
		return deref(a.HouseNumberAddition)
	case mapping.City:
		return a.City
	case mapping.Postcode:
		return a.Postcode
	case mapping.Province:
		return deref(a.Province)
	case mapping.StreetAndHouseNumber:
		return a.StreetAndHouseNumber()
	case mapping.HouseNumberAndAddition:
		return a.HouseNumberAndAddition()
	}
	return ""
}

// WithAddition returns a copy of a carrying addition.
func (a Address) WithAddition(addition string) Address {
	a.HouseNumberAddition = &addition
	return a
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ResultKind tags a Result.
type ResultKind int

const (
	ResultValid ResultKind = iota
	ResultNotFound
	ResultAdditionAmbiguous
	ResultError
)

func (k ResultKind) String() string {
	switch k {
	case ResultValid:
		return "valid"
	case ResultNotFound:
		return "not_found"
	case ResultAdditionAmbiguous:
		return "addition_ambiguous"
	case ResultError:
		return "error"
	}
	return "ResultKind(" + strconv.Itoa(int(k)) + ")"
}

// Result is the outcome of one completed lookup.
//
// Address is set for ResultValid, and for ResultAdditionAmbiguous where it
// is the provisional address lacking only its addition. Candidates keeps
// the order the API returned.
type Result struct {
	Kind       ResultKind `json:"kind"`
	Address    *Address   `json:"address,omitempty"`
	Candidates []string   `json:"candidates,omitempty"`
	Err        error      `json:"-"`
}

// Valid builds a ResultValid.
func Valid(a Address) Result {
	return Result{Kind: ResultValid, Address: &a}
}

// NotFound builds a ResultNotFound.
func NotFound() Result {
	return Result{Kind: ResultNotFound}
}

// AdditionAmbiguous builds a ResultAdditionAmbiguous.
func AdditionAmbiguous(provisional Address, candidates []string) Result {
	provisional.HouseNumberAddition = nil
	return Result{Kind: ResultAdditionAmbiguous, Address: &provisional, Candidates: slices.Clone(candidates)}
}

// Failure builds a ResultError.
func Failure(err error) Result {
	return Result{Kind: ResultError, Err: err}
}

func (r Result) String() string {
	if r.Kind == ResultError {
		return fmt.Sprintf("error(%v)", r.Err)
	}
	return r.Kind.String()
}

// AddressAPI is the external address service. A transport failure is
// returned as error; every answer the service gives is a Result.
type AddressAPI interface {
	Lookup(ctx context.Context, key parser.CanonicalKey) (Result, error)
}
