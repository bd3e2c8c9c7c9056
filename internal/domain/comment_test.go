package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain string", `"great movie"`, "great movie"},
		{"text object", `{"text":"loved it"}`, "loved it"},
		{"legacy comment object", `{"comment":"nice"}`, "nice"},
		{"embedded json string", `"{\"comment\":\"nice twist\"}"`, "nice twist"},
		{"embedded broken json", `"{comment: nice}"`, "nice"},
		{"embedded key-value form", `"{comment=solid}"`, "solid"},
		{"stray braces", `"hello {world}"`, "hello world"},
		{"null", `null`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Comment
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &c))
			assert.Equal(t, tt.want, c.Text)
		})
	}
}

func TestCommentMarshalUsesTextShape(t *testing.T) {
	payload, err := json.Marshal(Comment{Text: "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"hi"}`, string(payload))
}

func TestMovieDecodeToleratesMixedComments(t *testing.T) {
	raw := `{
		"movieId": 42,
		"title": "Inception",
		"year": 2010,
		"genres": ["ACTION", "SCIENCE_FICTION"],
		"directors": ["Christopher Nolan"],
		"castings": ["Leonardo DiCaprio"],
		"overview": "Dreams within dreams.",
		"rating": 1200,
		"inAppRating": 4.5,
		"comments": ["plain", {"text":"object"}, "{\"comment\":\"legacy\"}", "{broken"]
	}`

	var m Movie
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.Equal(t, 42, m.ID)
	assert.Equal(t, []string{"Christopher Nolan"}, m.Directors)
	require.Len(t, m.Comments, 4)
	assert.Equal(t, "plain", m.Comments[0].Text)
	assert.Equal(t, "object", m.Comments[1].Text)
	assert.Equal(t, "legacy", m.Comments[2].Text)
	assert.Equal(t, "broken", m.Comments[3].Text)
}

func FuzzParseCommentText(f *testing.F) {
	for _, seed := range []string{`{"comment":"x"}`, `{text: y}`, "plain", "{", "}{", ""} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		_ = ParseCommentText(raw)
		var c Comment
		payload, err := json.Marshal(raw)
		if err != nil {
			return
		}
		if err := c.UnmarshalJSON(payload); err != nil {
			t.Fatalf("UnmarshalJSON(%q) returned error: %v", payload, err)
		}
	})
}
