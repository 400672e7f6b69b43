package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextFor(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(contextFor("/"))

	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := FromContext(contextFor("/?limit=5&offset=10"))
	if p.Limit != 5 || p.Offset != 10 {
		t.Errorf("expected 5/10, got %d/%d", p.Limit, p.Offset)
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	p := FromContext(contextFor("/?limit=1000"))
	if p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_NegativeOffset(t *testing.T) {
	p := FromContext(contextFor("/?offset=-3"))
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]string{"a", "b"}, 50, 20, 0)
	if resp.Total != 50 || resp.Limit != 20 || resp.Offset != 0 {
		t.Errorf("unexpected response %+v", resp)
	}
	if !resp.HasMore {
		t.Error("expected has_more")
	}

	last := NewResponse([]string{"a"}, 21, 20, 20)
	if last.HasMore {
		t.Error("last page should not have more")
	}
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	resp := Page(items, Params{Limit: 2, Offset: 1})
	page := resp.Data.([]int)
	if len(page) != 2 || page[0] != 2 || page[1] != 3 {
		t.Errorf("unexpected page %v", page)
	}
	if resp.Total != 5 || !resp.HasMore {
		t.Errorf("unexpected response %+v", resp)
	}

	beyond := Page(items, Params{Limit: 2, Offset: 10})
	if got := beyond.Data.([]int); len(got) != 0 {
		t.Errorf("expected empty page, got %v", got)
	}

	empty := Page[int](nil, Params{Limit: 20})
	if got := empty.Data.([]int); got == nil {
		t.Error("empty page should serialize as an array")
	}
}
