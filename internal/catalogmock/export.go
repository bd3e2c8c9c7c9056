package catalogmock

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Clark-Hu/movie-feaster/internal/domain"
)

type xmlMovies struct {
	XMLName xml.Name   `xml:"movies"`
	Movies  []xmlMovie `xml:"movie"`
}

type xmlMovie struct {
	ID          int      `xml:"id,attr"`
	Title       string   `xml:"title"`
	Year        int      `xml:"year"`
	Genres      []string `xml:"genres>genre"`
	Directors   []string `xml:"directors>director"`
	Cast        []string `xml:"castings>cast"`
	Rating      float64  `xml:"rating"`
	InAppRating float64  `xml:"inAppRating"`
	Comments    []string `xml:"comments>comment"`
}

var csvHeader = []string{"movieId", "title", "year", "genres", "directors", "castings", "rating", "inAppRating"}

// Render encodes movies in format.
func Render(movies []domain.Movie, format domain.ExportFormat) ([]byte, error) {
	switch format {
	case domain.FormatJSON:
		return json.MarshalIndent(movies, "", "  ")
	case domain.FormatXML:
		return renderXML(movies)
	case domain.FormatCSV:
		return renderCSV(movies)
	default:
		return renderPretty(movies)
	}
}

func renderXML(movies []domain.Movie) ([]byte, error) {
	doc := xmlMovies{Movies: make([]xmlMovie, 0, len(movies))}
	for _, m := range movies {
		xm := xmlMovie{
			ID:          m.ID,
			Title:       m.Title,
			Year:        m.Year,
			Genres:      m.Genres,
			Directors:   m.Directors,
			Cast:        m.Cast,
			Rating:      m.Popularity,
			InAppRating: m.InAppRating,
		}
		for _, c := range m.Comments {
			xm.Comments = append(xm.Comments, c.Text)
		}
		doc.Movies = append(doc.Movies, xm)
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

func renderCSV(movies []domain.Movie) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, m := range movies {
		row := []string{
			strconv.Itoa(m.ID),
			m.Title,
			strconv.Itoa(m.Year),
			strings.Join(m.Genres, "|"),
			strings.Join(m.Directors, "|"),
			strings.Join(m.Cast, "|"),
			formatScore(m.Popularity),
			formatScore(m.InAppRating),
		}
		if err := cw.Write(row); err != nil {
			return nil, err
		}
	}
	cw.Flush()
	return buf.Bytes(), cw.Error()
}

func renderPretty(movies []domain.Movie) ([]byte, error) {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tYEAR\tGENRES\tRATING\tIN-APP")
	for _, m := range movies {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n",
			m.ID, m.Title, m.Year, strings.Join(m.Genres, ", "),
			formatScore(m.Popularity), formatScore(m.InAppRating))
	}
	if err := tw.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
