// Package testsite renders pages in the target site's markup and serves them
// from an in-memory fetcher, for tests across the crawl packages.
package testsite

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

// Card is one product on a category page.
type Card struct {
	ID            int64
	Name          string
	OriginalPrice string
	DiscountPrice string
}

// URL returns the canonical product URL for the card on base.
func (c Card) URL(base string) string {
	return fmt.Sprintf("%s/hoodie-%d-product%d.html", base, c.ID, c.ID)
}

// ReviewBlock is one review on a review page.
type ReviewBlock struct {
	Stars int
	Time  string
	Text  string
	Size  string
	Color string
}

// CategoryPage renders product cards and, when pages > 0, a pager.
func CategoryPage(base string, cards []Card, pages int) string {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"cate-list\">")
	for _, c := range cards {
		fmt.Fprintf(&b, `<div class="js-good js-dlGood js_logsss_browser js_logsss_event_ps category-good">
<a href="%s"><img src="x.jpg"></a>
<a class="goods-name-link js_logsss_click_delegate_ps" href="%s">%s</a>
<span class="my-shop-price category-good-price-market dl-has-rrp-tag" data-orgp="%s">$%s</span>
<span class="js-dlShopPrice my-shop-price category-good-price-sale" data-orgp="%s">$%s</span>
</div>`, c.URL(base), c.URL(base), c.Name, c.OriginalPrice, c.OriginalPrice, c.DiscountPrice, c.DiscountPrice)
	}
	b.WriteString("</div>")
	b.WriteString(Pager(pages))
	b.WriteString("</body></html>")
	return b.String()
}

// Pager renders a pager whose second-to-last entry is pages. Zero renders
// nothing.
func Pager(pages int) string {
	if pages <= 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<div class="site-pager"><ul><li><a>&lt;</a></li>`)
	for i := 1; i <= pages && i <= 3; i++ {
		fmt.Fprintf(&b, "<li><a>%d</a></li>", i)
	}
	if pages > 3 {
		fmt.Fprintf(&b, "<li>...</li><li><a>%d</a></li>", pages)
	}
	b.WriteString(`<li><a>&gt;</a></li></ul></div>`)
	return b.String()
}

// ProductPage renders a detail page. An empty rating omits the rating block;
// a nil info omits the attribute table.
func ProductPage(rating string, info [][2]string) string {
	var b strings.Builder
	b.WriteString("<html><body><h1>Product</h1>")
	if rating != "" {
		fmt.Fprintf(&b, `<div class="review-rate"><span class="review-avg-rate">%s</span></div>`, rating)
	}
	if info != nil {
		b.WriteString(`<div class="xxkkk"><div class="xxkkk20">`)
		for _, kv := range info {
			fmt.Fprintf(&b, "<strong>%s:</strong> %s<br>", kv[0], kv[1])
		}
		b.WriteString("</div></div>")
	}
	b.WriteString("</body></html>")
	return b.String()
}

// ReviewPage renders review blocks and, when pages > 0, a pager.
func ReviewPage(reviews []ReviewBlock, pages int) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, r := range reviews {
		b.WriteString(`<div class="reviewlist clearfix"><div class="review-star">`)
		for i := 0; i < r.Stars; i++ {
			b.WriteString(`<i class="iconfont icon-star-black"></i>`)
		}
		fmt.Fprintf(&b, `</div><span class="reviewtime">%s</span><p class="reviewcon">%s</p><div class="review-attr">`, r.Time, r.Text)
		if r.Size != "" {
			fmt.Fprintf(&b, "<span>Size: %s</span>", r.Size)
		}
		if r.Color != "" {
			fmt.Fprintf(&b, "<span>Color: %s</span>", r.Color)
		}
		b.WriteString("</div></div>")
	}
	b.WriteString(Pager(pages))
	b.WriteString("</body></html>")
	return b.String()
}

// Fetcher serves bodies from a map and records every request.
type Fetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	calls  map[string]int
	failed map[string]bool
}

// NewFetcher returns an empty Fetcher.
func NewFetcher() *Fetcher {
	return &Fetcher{
		pages:  make(map[string]string),
		calls:  make(map[string]int),
		failed: make(map[string]bool),
	}
}

// Set registers body for url.
func (f *Fetcher) Set(url, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = body
}

// Fail makes url return an error.
func (f *Fetcher) Fail(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[url] = true
}

// Heal undoes Fail for url.
func (f *Fetcher) Heal(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failed, url)
}

// Fetch implements catalog.Fetcher.
func (f *Fetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if f.failed[url] {
		return nil, fmt.Errorf("fetch %s: connection reset", url)
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, catalog.ErrEmptyBody
	}
	return []byte(body), nil
}

// Calls returns how many times url was fetched.
func (f *Fetcher) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// TotalCalls returns the number of fetches across all URLs.
func (f *Fetcher) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}
