package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phraselab/phrase-search-platform/internal/collection"
	"github.com/phraselab/phrase-search-platform/internal/indexer"
	"github.com/phraselab/phrase-search-platform/internal/searcher"
)

type stubResolver struct {
	matches map[string][]int
	err     error
}

func (s *stubResolver) Match(terms []string) ([]int, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.matches[strings.Join(terms, " ")], nil
}

func newTestHandler(resolver searcher.Resolver) *Handler {
	resolvers := map[indexer.Variant]searcher.Resolver{
		indexer.VariantStandard: resolver,
	}
	return New(resolvers, collection.NewNormalizer(false), nil, nil, nil, nil, indexer.VariantStandard, 8)
}

func doPhrase(t *testing.T, h *Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.Phrase(rec, req)
	return rec
}

func TestPhraseMissingQuery(t *testing.T) {
	h := newTestHandler(&stubResolver{})
	rec := doPhrase(t, h, "/api/v1/phrase")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestPhraseUnknownVariant(t *testing.T) {
	h := newTestHandler(&stubResolver{})
	rec := doPhrase(t, h, "/api/v1/phrase?q=hello&variant=biword")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestPhraseVariantNotLoaded(t *testing.T) {
	h := newTestHandler(&stubResolver{})
	rec := doPhrase(t, h, "/api/v1/phrase?q=hello&variant=nextword")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestPhraseTooManyTerms(t *testing.T) {
	h := newTestHandler(&stubResolver{})
	rec := doPhrase(t, h, "/api/v1/phrase?q=a+b+c+d+e+f+g+h+i")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestPhraseMatches(t *testing.T) {
	resolver := &stubResolver{matches: map[string][]int{"quick brown fox": {3, 17}}}
	h := newTestHandler(resolver)

	rec := doPhrase(t, h, "/api/v1/phrase?q=Quick+BROWN+fox!")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result searcher.PhraseResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Variant != "standard" {
		t.Errorf("expected variant standard, got %q", result.Variant)
	}
	if result.TotalMatches != 2 {
		t.Errorf("expected 2 matches, got %d", result.TotalMatches)
	}
	if len(result.Matches) != 2 || result.Matches[0] != 3 || result.Matches[1] != 17 {
		t.Errorf("expected matches [3 17], got %v", result.Matches)
	}
}

func TestPhraseNoMatches(t *testing.T) {
	h := newTestHandler(&stubResolver{})

	rec := doPhrase(t, h, "/api/v1/phrase?q=missing+phrase")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var result searcher.PhraseResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.TotalMatches != 0 {
		t.Errorf("expected 0 matches, got %d", result.TotalMatches)
	}
	if result.Matches == nil {
		t.Error("expected matches to encode as an empty array, got null")
	}
}

func TestPhraseEmptyAfterNormalization(t *testing.T) {
	h := newTestHandler(&stubResolver{err: errors.New("resolver must not be called")})

	rec := doPhrase(t, h, "/api/v1/phrase?q=123+%21%40%23")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result searcher.PhraseResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(result.Terms) != 0 || result.TotalMatches != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestPhraseResolverError(t *testing.T) {
	h := newTestHandler(&stubResolver{err: errors.New("seek failed")})

	rec := doPhrase(t, h, "/api/v1/phrase?q=broken+index")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
}

func TestCacheStatsDisabled(t *testing.T) {
	h := newTestHandler(&stubResolver{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil)
	rec := httptest.NewRecorder()
	h.CacheStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "disabled" {
		t.Errorf("expected status disabled, got %q", body["status"])
	}
}
