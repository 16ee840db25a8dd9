package http

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Pagination contains page-based pagination info. Page is 1-indexed.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// SetLinkHeaders adds RFC 8288 Link headers for paginated responses,
// preserving every query parameter except page.
func SetLinkHeaders(c *fiber.Ctx, p Pagination) {
	base := c.Path()
	params := url.Values{}
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		if key := string(k); key != "page" {
			params.Add(key, string(v))
		}
	})

	link := func(page int, rel string) string {
		params.Set("page", fmt.Sprint(page))
		return fmt.Sprintf(`<%s?%s>; rel="%s"`, base, params.Encode(), rel)
	}

	last := p.Pages
	if last < 1 {
		last = 1
	}
	links := []string{link(1, "first")}
	if p.Page > 1 {
		prev := p.Page - 1
		if prev > last {
			prev = last
		}
		links = append(links, link(prev, "prev"))
	}
	if p.Page < p.Pages {
		links = append(links, link(p.Page+1, "next"))
	}
	links = append(links, link(last, "last"))

	c.Set("Link", strings.Join(links, ", "))
}
