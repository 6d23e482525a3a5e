package models

// ReleaseDetail is the nested release record the backend returns from its
// detail and export endpoints. Step1 holds release metadata, Step2 the
// track list, Step3 distribution settings.
type ReleaseDetail struct {
	ID       string       `json:"id"`
	Category string       `json:"category"`
	Status   string       `json:"status"`
	Step1    ReleaseInfo  `json:"step1"`
	Step2    ReleaseMedia `json:"step2"`
	Step3    Distribution `json:"step3"`
}

type ReleaseInfo struct {
	Title       string `json:"title"`
	ArtistName  string `json:"artistName"`
	Label       string `json:"label"`
	Genre       string `json:"genre"`
	UPC         string `json:"upc"`
	ReleaseDate string `json:"releaseDate"`
	CoverURL    string `json:"coverUrl"`
}

type ReleaseMedia struct {
	Tracks []Track `json:"tracks"`
}

type Track struct {
	Title      string `json:"title"`
	ISRC       string `json:"isrc"`
	Duration   string `json:"duration"`
	Explicit   bool   `json:"explicit"`
	Composer   string `json:"composer"`
	AudioURL   string `json:"audioUrl"`
	TrackOrder int    `json:"trackOrder"`
}

type Distribution struct {
	Stores      []string `json:"stores"`
	Territories []string `json:"territories"`
	PriceTier   string   `json:"priceTier"`
}

// ReleasePage is one page of release details for export.
type ReleasePage struct {
	Items      []ReleaseDetail `json:"items"`
	Pagination Pagination      `json:"pagination"`
}
