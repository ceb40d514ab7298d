package webhook

import (
	"regexp"
	"strings"
)

// Category is the kind of business change a delivery carries.
type Category string

const (
	CategorySale         Category = "sale"
	CategoryRefund       Category = "refund"
	CategoryEventUpdate  Category = "event_update"
	CategoryEventPublish Category = "event_publish"
	CategoryEventCancel  Category = "event_cancel"
	CategoryIgnored      Category = "ignored"
)

var (
	orderPattern   = regexp.MustCompile(`\b(order|orders|sale|sales|purchase)\b`)
	refundPattern  = regexp.MustCompile(`(refund|cancel|void|delete)`)
	salePattern    = regexp.MustCompile(`(placed|created|completed|updated|purchased|paid|new)`)
	eventPattern   = regexp.MustCompile(`\b(event|events|event_series|series|occurrence)\b`)
	publishPattern = regexp.MustCompile(`(publish|published|on_sale)$`)
	cancelPattern  = regexp.MustCompile(`(cancel|unpublish|delete|ended|postpone)`)
	updatePattern  = regexp.MustCompile(`(update|updated|created|changed)`)
)

// Classify maps a provider event type such as "ORDER.CREATED" or
// "order.refunded" to a Category.  Unknown types are CategoryIgnored.
func Classify(eventType string) Category {
	t := strings.ToLower(strings.TrimSpace(eventType))
	if t == "" {
		return CategoryIgnored
	}
	// separators vary by provider: ORDER.CREATED, order.placed, event-updated
	t = strings.NewReplacer(".", " ", ":", " ", "-", " ", "/", " ").Replace(t)

	switch {
	case orderPattern.MatchString(t):
		if refundPattern.MatchString(t) {
			return CategoryRefund
		}
		if salePattern.MatchString(t) {
			return CategorySale
		}
	case eventPattern.MatchString(t):
		switch {
		case cancelPattern.MatchString(t):
			return CategoryEventCancel
		case publishPattern.MatchString(t):
			return CategoryEventPublish
		case updatePattern.MatchString(t):
			return CategoryEventUpdate
		}
	}
	return CategoryIgnored
}
