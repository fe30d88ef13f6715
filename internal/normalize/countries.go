package normalize

// fallbackCountries covers the duty stations that dominate the covered
// job boards. The taxonomy store supersedes this list when populated.
var fallbackCountries = map[string]string{
	"afghanistan":                      "AF",
	"bangladesh":                       "BD",
	"belgium":                          "BE",
	"brazil":                           "BR",
	"burkina faso":                     "BF",
	"cambodia":                         "KH",
	"cameroon":                         "CM",
	"canada":                           "CA",
	"central african republic":         "CF",
	"chad":                             "TD",
	"colombia":                         "CO",
	"democratic republic of the congo": "CD",
	"denmark":                          "DK",
	"ecuador":                          "EC",
	"egypt":                            "EG",
	"ethiopia":                         "ET",
	"france":                           "FR",
	"germany":                          "DE",
	"ghana":                            "GH",
	"haiti":                            "HT",
	"india":                            "IN",
	"indonesia":                        "ID",
	"iraq":                             "IQ",
	"italy":                            "IT",
	"jordan":                           "JO",
	"kenya":                            "KE",
	"lebanon":                          "LB",
	"liberia":                          "LR",
	"libya":                            "LY",
	"madagascar":                       "MG",
	"malawi":                           "MW",
	"mali":                             "ML",
	"mexico":                           "MX",
	"mozambique":                       "MZ",
	"myanmar":                          "MM",
	"nepal":                            "NP",
	"netherlands":                      "NL",
	"niger":                            "NE",
	"nigeria":                          "NG",
	"pakistan":                         "PK",
	"philippines":                      "PH",
	"senegal":                          "SN",
	"sierra leone":                     "SL",
	"somalia":                          "SO",
	"south africa":                     "ZA",
	"south sudan":                      "SS",
	"sri lanka":                        "LK",
	"sudan":                            "SD",
	"switzerland":                      "CH",
	"syria":                            "SY",
	"tanzania":                         "TZ",
	"thailand":                         "TH",
	"turkey":                           "TR",
	"uganda":                           "UG",
	"ukraine":                          "UA",
	"united kingdom":                   "GB",
	"united states":                    "US",
	"venezuela":                        "VE",
	"yemen":                            "YE",
	"zambia":                           "ZM",
	"zimbabwe":                         "ZW",
}
