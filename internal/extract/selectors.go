package extract

// CSS selectors for the target site's markup.
const (
	selListingItem   = "div.js-good.js-dlGood.js_logsss_browser.js_logsss_event_ps.category-good"
	selListingLink   = "a"
	selListingName   = "a.goods-name-link.js_logsss_click_delegate_ps"
	selPriceOriginal = "span.my-shop-price.category-good-price-market.dl-has-rrp-tag"
	selPriceSale     = "span.js-dlShopPrice.my-shop-price.category-good-price-sale"
	attrPrice        = "data-orgp"

	selPager      = "div.site-pager"
	selPagerEntry = "li"

	selRating     = "span.review-avg-rate"
	selInfoBlock  = "div.xxkkk20"
	selInfoLabel  = "strong"
	infoSeparator = ";"

	selReviewItem  = "div.reviewlist.clearfix"
	selReviewStar  = "i.icon-star-black"
	selReviewTime  = "span.reviewtime"
	selReviewText  = "p.reviewcon"
	selReviewLabel = "span"

	// ReviewTimeLayout matches e.g. "Mar,5 2021 14:03:59".
	ReviewTimeLayout = "Jan,2 2006 15:4:5"

	// SizeLabel and ColorLabel prefix the optional review attributes.
	SizeLabel  = "Size:"
	ColorLabel = "Color:"
)
