package scrape

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Placeholders understood by the path templates.
const (
	PagePlaceholder      = "{page}"
	ProductIDPlaceholder = "{product_id}"
)

// Site describes where the category and review pages live.
type Site struct {
	BaseURL      string
	CategoryPath string
	ReviewPath   string
	// Location is the zone review timestamps are written in.
	Location *time.Location
}

// Validate checks the templates carry the placeholders they need.
func (s Site) Validate() error {
	if _, err := url.ParseRequestURI(s.BaseURL); err != nil {
		return fmt.Errorf("invalid base url %q: %w", s.BaseURL, err)
	}
	if !strings.Contains(s.CategoryPath, PagePlaceholder) {
		return fmt.Errorf("category path %q must contain %s", s.CategoryPath, PagePlaceholder)
	}
	if !strings.Contains(s.ReviewPath, PagePlaceholder) || !strings.Contains(s.ReviewPath, ProductIDPlaceholder) {
		return fmt.Errorf("review path %q must contain %s and %s", s.ReviewPath, ProductIDPlaceholder, PagePlaceholder)
	}
	return nil
}

// CategoryURL returns the URL of a category listing page.
func (s Site) CategoryURL(page int) string {
	path := strings.ReplaceAll(s.CategoryPath, PagePlaceholder, strconv.Itoa(page))
	return s.join(path)
}

// ReviewURL returns the URL of one review page of a product.
func (s Site) ReviewURL(productID int64, page int) string {
	path := strings.NewReplacer(
		ProductIDPlaceholder, strconv.FormatInt(productID, 10),
		PagePlaceholder, strconv.Itoa(page),
	).Replace(s.ReviewPath)
	return s.join(path)
}

// Resolve turns a possibly relative product href into an absolute URL.
func (s Site) Resolve(href string) string {
	ref, err := url.Parse(href)
	if err != nil || ref.IsAbs() {
		return href
	}
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func (s Site) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

func (s Site) join(path string) string {
	return strings.TrimRight(s.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
