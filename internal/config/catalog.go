package config

import "MediaTrend/internal/domain"

const (
	scannerTudum      = "tudum"
	scannerFlixPatrol = "flixpatrol"
)

var platforms = []domain.Platform{
	{ID: "netflix", Name: "Netflix", Slug: "netflix", Scanner: scannerTudum},
	{ID: "amazon", Name: "Amazon Prime", Slug: "amazon-prime", Scanner: scannerFlixPatrol},
	{ID: "disney", Name: "Disney+", Slug: "disney", Scanner: scannerFlixPatrol},
	{ID: "hbo", Name: "HBO Max", Slug: "hbo-max", Scanner: scannerFlixPatrol},
	{ID: "hulu", Name: "Hulu", Slug: "hulu", Scanner: scannerFlixPatrol},
	{ID: "peacock", Name: "Peacock", Slug: "peacock", Scanner: scannerFlixPatrol},
	{ID: "paramount", Name: "Paramount+", Slug: "paramount-plus", Scanner: scannerFlixPatrol},
	{ID: "apple", Name: "Apple TV+", Slug: "apple-tv", Scanner: scannerFlixPatrol},
	{ID: "discovery", Name: "Discovery+", Slug: "discovery-plus", Scanner: scannerFlixPatrol},
	{ID: "star", Name: "Star+", Slug: "star-plus", Scanner: scannerFlixPatrol},
	{ID: "rakuten", Name: "Rakuten TV", Slug: "rakuten-tv", Scanner: scannerFlixPatrol},
	{ID: "google", Name: "Google Play", Slug: "google-play", Scanner: scannerFlixPatrol},
	{ID: "crunchyroll", Name: "Crunchyroll", Slug: "crunchyroll", Scanner: scannerFlixPatrol},
	{ID: "bbc", Name: "BBC iPlayer", Slug: "bbc", Scanner: scannerFlixPatrol},
	{ID: "joyn", Name: "Joyn", Slug: "joyn", Scanner: scannerFlixPatrol},
	{ID: "rtl", Name: "RTL+", Slug: "rtl-plus", Scanner: scannerFlixPatrol},
	{ID: "sky", Name: "Sky", Slug: "sky", Scanner: scannerFlixPatrol},
	{ID: "canal", Name: "Canal+", Slug: "canal-plus", Scanner: scannerFlixPatrol},
}

// Country is an entry of the dashboard's country picker.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var commonCountries = []Country{
	{Code: "WORLD", Name: "Worldwide"},
	{Code: "CH", Name: "Switzerland"},
	{Code: "DE", Name: "Germany"},
	{Code: "AT", Name: "Austria"},
	{Code: "US", Name: "United States"},
	{Code: "GB", Name: "United Kingdom"},
	{Code: "FR", Name: "France"},
	{Code: "IT", Name: "Italy"},
	{Code: "ES", Name: "Spain"},
	{Code: "CA", Name: "Canada"},
	{Code: "AU", Name: "Australia"},
}

// Platforms returns the supported catalog in display order.
func Platforms() []domain.Platform {
	return append([]domain.Platform(nil), platforms...)
}

// PlatformByID looks a platform up by its job-key prefix.
func PlatformByID(id string) (domain.Platform, bool) {
	for _, p := range platforms {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Platform{}, false
}

// CommonCountries lists the countries offered by the dashboard.
func CommonCountries() []Country {
	return append([]Country(nil), commonCountries...)
}
