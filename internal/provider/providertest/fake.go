// Package providertest provides an in-memory provider.Adapter for tests.
package providertest

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/boxoffice-sync/internal/model"
	"github.com/iliyamo/boxoffice-sync/internal/provider"
)

// Fake serves canned data.  Error fields, when set, are returned by the
// matching call; SalesErr is keyed by occurrence id.
type Fake struct {
	mu sync.Mutex

	Kind        model.ProviderType
	Caps        provider.Capabilities
	Events      []provider.Event
	Occurrences map[string][]provider.Occurrence
	Sales       map[string][]provider.SaleRow
	TicketTypes map[string][]provider.TicketType
	Envelope    *provider.WebhookEnvelope
	EventType   string

	AuthErr        error
	EventsErr      error
	OccurrencesErr error
	SalesErr       map[string]error
	EnvelopeErr    error

	SalesCalls []SalesCall
}

// SalesCall records one FetchSales invocation.
type SalesCall struct {
	EventID      string
	OccurrenceID string
	Since        *time.Time
}

// New returns a Fake with every capability enabled.
func New() *Fake {
	return &Fake{
		Kind:        model.ProviderTicketTailor,
		Caps:        provider.Capabilities{FetchEvents: true, FetchOccurrences: true, FetchSales: true, FetchTicketTypes: true, Webhooks: true},
		Occurrences: map[string][]provider.Occurrence{},
		Sales:       map[string][]provider.SaleRow{},
		TicketTypes: map[string][]provider.TicketType{},
		SalesErr:    map[string]error{},
	}
}

var _ provider.Adapter = (*Fake)(nil)

func (f *Fake) Type() model.ProviderType { return f.Kind }
func (f *Fake) Capabilities() provider.Capabilities { return f.Caps }

func (f *Fake) Authenticate(context.Context) error { return f.AuthErr }

func (f *Fake) FetchEvents(context.Context) ([]provider.Event, error) {
	if f.EventsErr != nil {
		return nil, f.EventsErr
	}
	return append([]provider.Event(nil), f.Events...), nil
}

func (f *Fake) FetchEvent(_ context.Context, id string) (*provider.Event, error) {
	for _, e := range f.Events {
		if e.ID == id {
			ev := e
			return &ev, nil
		}
	}
	return nil, &provider.APIError{Provider: "fake", StatusCode: 404, Message: "event not found"}
}

func (f *Fake) FetchOccurrences(_ context.Context, eventID string) ([]provider.Occurrence, error) {
	if f.OccurrencesErr != nil {
		return nil, f.OccurrencesErr
	}
	return append([]provider.Occurrence(nil), f.Occurrences[eventID]...), nil
}

func (f *Fake) FetchSales(_ context.Context, eventID, occurrenceID string, since *time.Time) ([]provider.SaleRow, error) {
	f.mu.Lock()
	f.SalesCalls = append(f.SalesCalls, SalesCall{EventID: eventID, OccurrenceID: occurrenceID, Since: since})
	f.mu.Unlock()
	if err := f.SalesErr[occurrenceID]; err != nil {
		return nil, err
	}
	return append([]provider.SaleRow(nil), f.Sales[occurrenceID]...), nil
}

func (f *Fake) FetchTicketTypes(_ context.Context, id string) ([]provider.TicketType, error) {
	if !f.Caps.FetchTicketTypes {
		return nil, provider.ErrUnsupported
	}
	return append([]provider.TicketType(nil), f.TicketTypes[id]...), nil
}

func (f *Fake) WebhookEventType([]byte) (string, error) { return f.EventType, nil }

func (f *Fake) ParseWebhook(context.Context, []byte) (*provider.WebhookEnvelope, error) {
	if f.EnvelopeErr != nil {
		return nil, f.EnvelopeErr
	}
	if f.Envelope == nil {
		return &provider.WebhookEnvelope{EventType: f.EventType}, nil
	}
	env := *f.Envelope
	return &env, nil
}
