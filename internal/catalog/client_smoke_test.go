package catalog

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Clark-Hu/movie-feaster/internal/domain"
)

// TestHTTPClientSmoke checks a live catalog (for example cmd/catalog-mock)
// answers the read endpoints.
func TestHTTPClientSmoke(t *testing.T) {
	baseURL := os.Getenv("CATALOG_URL")
	if baseURL == "" {
		t.Skip("CATALOG_URL not provided")
	}
	client, err := NewHTTPClient(baseURL, 3*time.Second, nil)
	if err != nil {
		t.Fatalf("create http client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	movies, err := client.Search(ctx, domain.Filters{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(movies) == 0 {
		t.Fatalf("catalog returned no movies")
	}
	if _, err := client.GetMovie(ctx, movies[0].ID); err != nil {
		t.Fatalf("get movie %d: %v", movies[0].ID, err)
	}
	if _, err := client.Genres(ctx); err != nil {
		t.Fatalf("genres: %v", err)
	}
}
