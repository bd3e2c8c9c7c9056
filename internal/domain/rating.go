package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Star rating bounds accepted by the client.
const (
	MinRating = 1
	MaxRating = 5
)

// ValidRating reports whether value is a whole star count the client may submit.
func ValidRating(value int) bool {
	return value >= MinRating && value <= MaxRating
}

// SortType names a catalog sort order.
type SortType string

const (
	SortDefault         SortType = "default"
	SortTitleAsc        SortType = "title_asc"
	SortTitleDesc       SortType = "title_desc"
	SortYearAsc         SortType = "year_asc"
	SortYearDesc        SortType = "year_desc"
	SortRatingAsc       SortType = "rating_asc"
	SortRatingDesc      SortType = "rating_desc"
	SortInAppRatingAsc  SortType = "inapp_rating_asc"
	SortInAppRatingDesc SortType = "inapp_rating_desc"
)

var sortTypes = map[SortType]struct{}{
	SortTitleAsc: {}, SortTitleDesc: {}, SortYearAsc: {}, SortYearDesc: {},
	SortRatingAsc: {}, SortRatingDesc: {}, SortInAppRatingAsc: {}, SortInAppRatingDesc: {},
}

// ParseSortType normalizes UI spellings ("year-desc") to the catalog form
// ("year_desc"). Empty input maps to SortDefault; unknown input reports false.
func ParseSortType(raw string) (SortType, bool) {
	val := strings.ToLower(strings.TrimSpace(raw))
	if val == "" || val == string(SortDefault) {
		return SortDefault, true
	}
	st := SortType(strings.ReplaceAll(val, "-", "_"))
	if _, ok := sortTypes[st]; !ok {
		return "", false
	}
	return st, true
}

// ExportFormat is a download format understood by the catalog export endpoint.
type ExportFormat string

const (
	FormatPretty ExportFormat = "PRETTY"
	FormatJSON   ExportFormat = "JSON"
	FormatXML    ExportFormat = "XML"
	FormatCSV    ExportFormat = "CSV"
)

// ParseExportFormat matches case-insensitively and falls back to PRETTY.
func ParseExportFormat(raw string) ExportFormat {
	switch ExportFormat(strings.ToUpper(strings.TrimSpace(raw))) {
	case FormatJSON:
		return FormatJSON
	case FormatXML:
		return FormatXML
	case FormatCSV:
		return FormatCSV
	default:
		return FormatPretty
	}
}

// Extension returns the file extension used for downloads in this format.
func (f ExportFormat) Extension() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatXML:
		return "xml"
	case FormatCSV:
		return "csv"
	default:
		return "txt"
	}
}

// Filename is the suggested download name, e.g. movies_csv.csv.
func (f ExportFormat) Filename() string {
	return "movies_" + strings.ToLower(string(f)) + "." + f.Extension()
}

// GenreLabel turns a catalog genre constant such as SCIENCE_FICTION into a
// display label ("Science Fiction").
func GenreLabel(genre string) string {
	words := strings.ReplaceAll(strings.TrimSpace(genre), "_", " ")
	if words == "" {
		return ""
	}
	// Casers carry state, so one is built per call.
	return cases.Title(language.English).String(strings.ToLower(words))
}

// ContentType is the MIME type of a download in this format.
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatXML:
		return "application/xml"
	case FormatCSV:
		return "text/csv"
	default:
		return "text/plain"
	}
}
