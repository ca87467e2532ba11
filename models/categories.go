package models

import "strings"

var categoryDisplayNames = map[string]string{
	"restaurant":         "Food & Dining",
	"food":               "Food & Dining",
	"gas_station":        "Gas Stations",
	"fuel":               "Gas Stations",
	"hotel":              "Hotels & Motels",
	"lodging":            "Hotels & Motels",
	"accommodation":      "Hotels & Motels",
	"attraction":         "Tourist Attractions",
	"tourist_attraction": "Tourist Attractions",
	"shopping":           "Shopping",
	"store":              "Shopping",
	"park":               "Parks & Nature",
	"nature":             "Parks & Nature",
	"museum":             "Museums",
	"entertainment":      "Entertainment",
	"beach":              "Beaches",
	"scenic_spot":        "Scenic Views",
	"viewpoint":          "Scenic Views",
	"historic_site":      "Historic Sites",
	"winery":             "Wineries",
	"cafe":               "Cafés & Coffee",
	"bar":                "Bars & Nightlife",
	"bakery":             "Bakeries",
	"campground":         "Camping & RV",
	"aquarium":           "Aquariums & Zoos",
	"zoo":                "Aquariums & Zoos",
	"atm":                "ATM & Banking",
	"bank":               "ATM & Banking",
	"pharmacy":           "Pharmacies",
	"hospital":           "Medical Services",
	"ev_charging":        "EV Charging",
}

// CategoryDisplayName maps a category id onto its label. Unknown ids are
// title-cased with underscores turned into spaces.
func CategoryDisplayName(category string) string {
	key := NormalizeCategory(category)
	if name, ok := categoryDisplayNames[key]; ok {
		return name
	}
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ValidCategory reports whether category is a usable vocabulary token:
// lower-case letters, digits and underscores.
func ValidCategory(category string) bool {
	c := NormalizeCategory(category)
	if c == "" || len(c) > 64 {
		return false
	}
	for _, r := range c {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}
