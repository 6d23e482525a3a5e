package export

import (
	"strconv"
	"strings"

	"github.com/tunebridge/console/internal/models"
)

// Columns is the fixed header of a release export. Downstream spreadsheets
// key on these names, so order and spelling are part of the contract.
var Columns = []string{
	"Release ID", "Category", "Status", "Release Title", "Artist", "Label",
	"Genre", "UPC", "Release Date", "Stores", "Territories", "Price Tier",
	"Track No", "Track Title", "ISRC", "Duration", "Explicit", "Composer",
}

// Row is one flattened export line.
type Row []string

// Flatten denormalizes releases into one row per track, repeating the
// release fields on every row. A release without tracks still yields one
// row with empty track columns.
func Flatten(releases []models.ReleaseDetail) []Row {
	rows := make([]Row, 0, len(releases))
	for _, r := range releases {
		parent := []string{
			r.ID,
			r.Category,
			r.Status,
			r.Step1.Title,
			r.Step1.ArtistName,
			r.Step1.Label,
			r.Step1.Genre,
			r.Step1.UPC,
			r.Step1.ReleaseDate,
			strings.Join(r.Step3.Stores, ", "),
			strings.Join(r.Step3.Territories, ", "),
			r.Step3.PriceTier,
		}
		if len(r.Step2.Tracks) == 0 {
			rows = append(rows, withTrack(parent, nil, 0))
			continue
		}
		for i := range r.Step2.Tracks {
			rows = append(rows, withTrack(parent, &r.Step2.Tracks[i], i+1))
		}
	}
	return rows
}

func withTrack(parent []string, t *models.Track, index int) Row {
	row := make(Row, 0, len(Columns))
	row = append(row, parent...)
	if t == nil {
		return append(row, "", "", "", "", "", "")
	}
	order := t.TrackOrder
	if order == 0 {
		order = index
	}
	return append(row,
		strconv.Itoa(order),
		t.Title,
		t.ISRC,
		t.Duration,
		strconv.FormatBool(t.Explicit),
		t.Composer,
	)
}
