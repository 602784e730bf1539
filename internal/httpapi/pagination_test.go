package httpapi

import (
	"net/http/httptest"
	"testing"
)

func TestParsePageParams_Defaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/releases", nil)
	p := parsePageParams(r)
	if p.Skip != 0 || p.Limit != defaultLimit {
		t.Fatalf("got %+v, want skip=0 limit=%d", p, defaultLimit)
	}
}

func TestParsePageParams_ClampsLimit(t *testing.T) {
	r := httptest.NewRequest("GET", "/releases?skip=5&limit=10000", nil)
	p := parsePageParams(r)
	if p.Skip != 5 || p.Limit != maxLimit {
		t.Fatalf("got %+v, want skip=5 limit=%d", p, maxLimit)
	}
}

func TestPaginate_Envelope(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	pg := paginate(items, pageParams{Skip: 1, Limit: 2})

	got := pg.Items.([]string)
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("items = %v", got)
	}
	if pg.Total != 5 || !pg.HasNext || !pg.HasPrevious {
		t.Fatalf("envelope = %+v", pg)
	}
}

func TestPaginate_PastEnd(t *testing.T) {
	items := []string{"a", "b"}
	pg := paginate(items, pageParams{Skip: 10, Limit: 5})
	got := pg.Items.([]string)
	if len(got) != 0 || pg.HasNext {
		t.Fatalf("envelope = %+v", pg)
	}
}
