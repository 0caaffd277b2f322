package extract

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/htmldoc"
)

// ReviewItems returns the review blocks on a review page.
func ReviewItems(page htmldoc.Node) []htmldoc.Node {
	return page.FindAll(selReviewItem)
}

// Review extracts one review. Missing size or color labels are logged and
// left nil; a malformed timestamp or missing text fails the review.
func Review(item htmldoc.Node, loc *time.Location, logger *zap.Logger) (catalog.Review, error) {
	ts, err := ReviewTimestamp(item, loc)
	if err != nil {
		return catalog.Review{}, err
	}
	text, err := ReviewText(item)
	if err != nil {
		return catalog.Review{}, err
	}
	size := ReviewLabel(item, SizeLabel)
	if size == nil {
		logger.Warn("review has no size label")
	}
	color := ReviewLabel(item, ColorLabel)
	if color == nil {
		logger.Warn("review has no color label")
	}
	return catalog.Review{
		Rating:    ReviewRating(item),
		Timestamp: ts,
		Text:      text,
		Size:      size,
		Color:     color,
	}, nil
}

// ReviewRating counts the filled stars.
func ReviewRating(item htmldoc.Node) int {
	return item.Count(selReviewStar)
}

// ReviewTimestamp parses the publication time into epoch seconds.
func ReviewTimestamp(item htmldoc.Node, loc *time.Location) (int64, error) {
	span, ok := item.Find(selReviewTime)
	if !ok {
		return 0, catalog.NewExtractionError("timestamp", errors.New("time element not found"))
	}
	return ParseReviewTime(span.Text(), loc)
}

// ParseReviewTime converts "Mon,D YYYY H:M:S" into epoch seconds in loc.
func ParseReviewTime(raw string, loc *time.Location) (int64, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(ReviewTimeLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return 0, catalog.NewExtractionError("timestamp", err)
	}
	return t.Unix(), nil
}

// ReviewText returns the review body.
func ReviewText(item htmldoc.Node) (string, error) {
	p, ok := item.Find(selReviewText)
	if !ok {
		return "", catalog.NewExtractionError("text", errors.New("text element not found"))
	}
	return p.Text(), nil
}

// ReviewLabel returns the trimmed value of the span starting with label, or
// nil when no such span exists.
func ReviewLabel(item htmldoc.Node, label string) *string {
	span, ok := item.FindPrefixed(selReviewLabel, label)
	if !ok {
		return nil
	}
	value := strings.TrimSpace(strings.ReplaceAll(span.Text(), label, ""))
	return &value
}
