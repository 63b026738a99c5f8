package normalize

import "strings"

// CodeTable is a read-only name to code lookup. Lookups are exact on the
// trimmed name; names without an entry pass through unchanged.
type CodeTable map[string]string

func (t CodeTable) Lookup(name string) string {
	name = strings.TrimSpace(name)
	if code, ok := t[name]; ok {
		return code
	}
	return name
}

// Countries maps ERP country names to ISO 3166-1 alpha-2 codes.
var Countries = CodeTable{
	"Australia":                "AU",
	"New Zealand":              "NZ",
	"United States":            "US",
	"United States of America": "US",
	"USA":                      "US",
	"United Kingdom":           "GB",
	"Great Britain":            "GB",
	"Canada":                   "CA",
	"Ireland":                  "IE",
	"Singapore":                "SG",
	"Hong Kong":                "HK",
	"China":                    "CN",
	"Japan":                    "JP",
	"South Africa":             "ZA",
	"Fiji":                     "FJ",
	"Papua New Guinea":         "PG",
	"Germany":                  "DE",
	"France":                   "FR",
	"Netherlands":              "NL",
	"India":                    "IN",
	"Malaysia":                 "MY",
	"Indonesia":                "ID",
	"Philippines":              "PH",
	"Thailand":                 "TH",
}

// Provinces maps state and province names to their subdivision codes. The
// location path passes regions through as given; this table is only applied
// when a caller opts in.
var Provinces = CodeTable{
	"New South Wales":              "NSW",
	"Victoria":                     "VIC",
	"Queensland":                   "QLD",
	"South Australia":              "SA",
	"Western Australia":            "WA",
	"Tasmania":                     "TAS",
	"Northern Territory":           "NT",
	"Australian Capital Territory": "ACT",
	"Auckland":                     "AUK",
	"Wellington":                   "WGN",
	"Canterbury":                   "CAN",
	"Ontario":                      "ON",
	"Quebec":                       "QC",
	"British Columbia":             "BC",
	"Alberta":                      "AB",
	"California":                   "CA",
	"New York":                     "NY",
	"Texas":                        "TX",
	"Florida":                      "FL",
}
