// Package service holds adapters that connect the engine to outside
// systems.
package service

import (
    "context"
    "encoding/json"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/sheet-reservation/internal/engine"
    q "github.com/iliyamo/sheet-reservation/internal/queue"
)

// publishTimeout bounds one publish so a slow broker never holds up a
// request that already committed.
const publishTimeout = 2 * time.Second

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
    PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
    Close() error
}

// dialFunc opens a channel with the queue declared, plus a closer for the
// underlying connection.
type dialFunc func(url, queue string) (channel, func() error, error)

// Publisher sends a ReservationEvent for each committed reserve or cancel.
// It implements engine.Notifier.  The connection is opened on first use
// and reopened after a failure; errors are logged and dropped.
type Publisher struct {
    url   string
    queue string
    log   *zap.Logger
    dial  dialFunc

    mu    sync.Mutex
    ch    channel
    close func() error
}

var _ engine.Notifier = (*Publisher)(nil)

func NewPublisher(url, queue string, log *zap.Logger) *Publisher {
    if log == nil {
        log = zap.NewNop()
    }
    return &Publisher{url: url, queue: queue, log: log, dial: dialAMQP}
}

func dialAMQP(url, queue string) (channel, func() error, error) {
    conn, err := amqp.Dial(url)
    if err != nil {
        return nil, nil, err
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, nil, err
    }
    // durable so messages survive broker restarts
    if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return nil, nil, err
    }
    return ch, conn.Close, nil
}

// Notify publishes n.  It never fails the caller.
func (p *Publisher) Notify(ctx context.Context, n engine.Notice) {
    if err := p.Publish(ctx, q.FromNotice(n)); err != nil {
        p.log.Warn("rabbitmq: publish failed",
            zap.String("type", n.Type), zap.Uint64("reservation_id", n.ReservationID), zap.Error(err))
    }
}

// Publish sends ev as a persistent JSON message to the queue.
func (p *Publisher) Publish(ctx context.Context, ev q.ReservationEvent) error {
    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }
    p.mu.Lock()
    defer p.mu.Unlock()

    if p.ch == nil {
        ch, closer, err := p.dial(p.url, p.queue)
        if err != nil {
            return err
        }
        p.ch, p.close = ch, closer
    }

    // detached from the request so a client hanging up does not drop the event
    pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
    defer cancel()
    err = p.ch.PublishWithContext(pctx, "", p.queue, false, false, amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Type:         ev.Type,
        Body:         body,
    })
    if err != nil {
        p.reset()
    }
    return err
}

// Close releases the connection.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    return p.reset()
}

func (p *Publisher) reset() error {
    if p.ch == nil {
        return nil
    }
    _ = p.ch.Close()
    err := p.close()
    p.ch, p.close = nil, nil
    return err
}
