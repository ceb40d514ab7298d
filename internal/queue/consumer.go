// Package queue contains the sync-request consumer run by the worker and
// the publisher used for scheduler requests and sale notifications.
package queue

import (
    "context"
    "encoding/json"
    "errors"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rotisserie/eris"
    "go.uber.org/zap"
)

// SyncHandler executes one sync request.
type SyncHandler func(ctx context.Context, req SyncRequest) error

// errMalformed marks messages that can never succeed.
var errMalformed = errors.New("queue: malformed sync request")

// StartSyncConsumer connects to RabbitMQ, declares the sync request queue
// (durable) and hands each message to handle, one at a time.  It runs a
// reconnect loop with exponential backoff and only returns when ctx is
// cancelled.  Failed requests are rejected without requeue; the scheduler
// re-issues them on its next tick.
func StartSyncConsumer(ctx context.Context, url string, handle SyncHandler, log *zap.Logger) error {
    if log == nil {
        log = zap.NewNop()
    }
    log = log.Named("sync-consumer")

    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Warn("dial broker failed", zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = consumeLoop(ctx, conn, handle, log)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Warn("consume loop ended; reconnecting", zap.Error(err))
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, handle SyncHandler, log *zap.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return eris.Wrap(err, "queue: channel open")
    }
    defer func() { _ = ch.Close() }()

    // sync runs are long; take one at a time
    if err := ch.Qos(1, 0, false); err != nil {
        log.Warn("set QoS failed", zap.Error(err))
    }

    if _, err := ch.QueueDeclare(SyncRequestedQueue, true, false, false, false, nil); err != nil {
        return eris.Wrap(err, "queue: declare")
    }

    msgs, err := ch.Consume(SyncRequestedQueue, "", false, false, false, false, nil)
    if err != nil {
        return eris.Wrap(err, "queue: consume")
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("queue: deliveries channel closed")
            }
            if err := handleDelivery(ctx, d.Body, handle); err != nil {
                log.Error("sync request failed", zap.ByteString("body", d.Body), zap.Error(err))
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func handleDelivery(ctx context.Context, body []byte, handle SyncHandler) error {
    var req SyncRequest
    if err := json.Unmarshal(body, &req); err != nil {
        return eris.Wrap(errMalformed, err.Error())
    }
    if req.Kind == "" {
        return eris.Wrap(errMalformed, "missing kind")
    }
    return handle(ctx, req)
}
