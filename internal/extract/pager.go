package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/htmldoc"
)

// PageCount reads the total page count from the second-to-last pager entry.
//
// A missing pager yields (1, nil) when pagerMayBeAbsent is set, otherwise
// catalog.ErrNoPager. A pager whose count is not an integer yields an
// *catalog.ExtractionError.
func PageCount(page htmldoc.Node, pagerMayBeAbsent bool) (int, error) {
	var entries []htmldoc.Node
	if pager, ok := page.Find(selPager); ok {
		entries = pager.FindAll(selPagerEntry)
	}
	if len(entries) < 2 {
		if pagerMayBeAbsent {
			return 1, nil
		}
		return 0, catalog.ErrNoPager
	}
	raw := strings.TrimSpace(entries[len(entries)-2].Text())
	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, catalog.NewExtractionError("page count", err)
	}
	if count < 1 {
		return 0, catalog.NewExtractionError("page count", fmt.Errorf("invalid count %d", count))
	}
	return count, nil
}
