package utils

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var indianGrouping = regexp.MustCompile(`^(\d{1,2},)*\d{1,3}$`)

// For any amount, FormatIndianCurrency groups digits as lakhs and crores,
// keeps two decimals and round-trips to the same value.
func TestPropertyIndianCurrencyFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("lakh grouping with two decimals", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatIndianCurrency(amount)

			body := formatted
			if amount < 0 {
				if !strings.HasPrefix(body, "-₹") {
					return false
				}
				body = strings.TrimPrefix(body, "-")
			}
			if !strings.HasPrefix(body, "₹") {
				return false
			}
			body = strings.TrimPrefix(body, "₹")

			intPart, decPart, ok := strings.Cut(body, ".")
			if !ok || len(decPart) != 2 || !indianGrouping.MatchString(intPart) {
				t.Logf("bad format for %f: %s", amount, formatted)
				return false
			}

			parsed, err := strconv.ParseFloat(strings.ReplaceAll(intPart, ",", "")+"."+decPart, 64)
			if err != nil {
				return false
			}
			return math.Abs(parsed-math.Abs(amount)) <= 0.006
		},
		gen.Float64Range(-1e12, 1e12),
	))

	properties.TestingRun(t)
}
