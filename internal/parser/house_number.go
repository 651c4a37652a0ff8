package parser

import (
	"regexp"
	"strings"
)

var reHouseNumberGuess = regexp.MustCompile(`[1-9]\d{0,4}\D*`)

// InitHouseNumber guesses the house number from previously stored address
// lines, so a returning shopper does not have to type it again.
//
// A number at the very start of the combined lines is discarded (it is
// more likely part of a street name such as "1e Jan Steenstraat"). Only a
// single remaining candidate is returned; none or several yield "".
func InitHouseNumber(address1, address2 string) string {
	joined := address1 + " " + address2
	locs := reHouseNumberGuess.FindAllStringIndex(joined, -1)

	if len(locs) > 0 && locs[0][0] == 0 {
		locs = locs[1:]
	}
	if len(locs) != 1 {
		return ""
	}
	return strings.TrimSpace(joined[locs[0][0]:locs[0][1]])
}
