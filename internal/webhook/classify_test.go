package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := map[string]Category{
		"ORDER.CREATED":        CategorySale,
		"order.placed":         CategorySale,
		"ORDER.UPDATED":        CategorySale,
		"ORDER.CANCELLED":      CategoryRefund,
		"ORDER.REFUNDED":       CategoryRefund,
		"order.refunded":       CategoryRefund,
		"EVENT.UPDATED":        CategoryEventUpdate,
		"event.created":        CategoryEventUpdate,
		"EVENT_SERIES.UPDATED": CategoryEventUpdate,
		"EVENT.PUBLISHED":      CategoryEventPublish,
		"event.published":      CategoryEventPublish,
		"EVENT.CANCELLED":      CategoryEventCancel,
		"event.unpublished":    CategoryEventCancel,
		"barcode.checked_in":   CategoryIgnored,
		"attendee.checked_in":  CategoryIgnored,
		"":                     CategoryIgnored,
		"ping":                 CategoryIgnored,
	}
	for in, want := range cases {
		assert.Equal(t, want, Classify(in), in)
	}
}
