package queue

import (
    "context"
    "encoding/json"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rotisserie/eris"
    "go.uber.org/zap"

    "github.com/iliyamo/boxoffice-sync/internal/model"
)

// Publisher publishes JSON messages to durable queues on the default
// exchange.  Each publish opens its own connection, which is fine for the
// low message rate of webhook sales and operator requests.
type Publisher struct {
    url string
    log *zap.Logger
    now func() time.Time
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log *zap.Logger) *Publisher {
    if log == nil {
        log = zap.NewNop()
    }
    return &Publisher{url: url, log: log.Named("publisher"), now: time.Now}
}

// SaleRecorded publishes a SaleRecordedEvent.  It satisfies the webhook
// processor's notifier.
func (p *Publisher) SaleRecorded(ctx context.Context, sale model.TicketSale) error {
    return p.publish(ctx, SaleRecordedQueue, saleEvent(sale, p.now()))
}

// RequestSync enqueues a sync request for the worker.
func (p *Publisher) RequestSync(ctx context.Context, req SyncRequest) error {
    return p.publish(ctx, SyncRequestedQueue, req)
}

func saleEvent(s model.TicketSale, at time.Time) SaleRecordedEvent {
    return SaleRecordedEvent{
        SaleID:               s.ID,
        ProviderID:           s.ProviderID,
        ExternalSaleID:       s.ExternalSaleID,
        ExternalOrderID:      s.ExternalOrderID,
        ExternalEventID:      s.ExternalEventID,
        ExternalOccurrenceID: s.ExternalOccurrenceID,
        ListingID:            s.ListingID,
        TierID:               s.TierID,
        ShowLinkID:           s.ShowLinkID,
        OfferName:            s.OfferName,
        Quantity:             s.Quantity,
        Subtotal:             s.Subtotal,
        SeatsDeducted:        s.SeatsDeducted,
        RecordedAt:           at.UTC().Format(time.RFC3339),
    }
}

func (p *Publisher) publish(ctx context.Context, queueName string, msg any) error {
    body, err := json.Marshal(msg)
    if err != nil {
        return eris.Wrap(err, "queue: marshal message")
    }

    conn, err := amqp.Dial(p.url)
    if err != nil {
        p.log.Warn("dial failed", zap.String("queue", queueName), zap.Error(err))
        return eris.Wrap(err, "queue: dial")
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return eris.Wrap(err, "queue: channel open")
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
        return eris.Wrap(err, "queue: declare")
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    p.now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
        p.log.Warn("publish failed", zap.String("queue", queueName), zap.Error(err))
        return eris.Wrap(err, "queue: publish")
    }
    return nil
}
