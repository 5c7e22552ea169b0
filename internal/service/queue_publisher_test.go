package service

import (
    "context"
    "encoding/json"
    "errors"
    "testing"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/sheet-reservation/internal/engine"
    q "github.com/iliyamo/sheet-reservation/internal/queue"
    "github.com/iliyamo/sheet-reservation/internal/seat"
)

type fakeChannel struct {
    sent   []amqp.Publishing
    keys   []string
    fail   error
    closed bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
    if f.fail != nil {
        return f.fail
    }
    f.keys = append(f.keys, key)
    f.sent = append(f.sent, msg)
    return nil
}

func (f *fakeChannel) Close() error { f.closed = true; return nil }

func newTestPublisher(dials *int, ch *fakeChannel, dialErr error) *Publisher {
    p := NewPublisher("amqp://test", "reservation.events", nil)
    p.dial = func(string, string) (channel, func() error, error) {
        *dials++
        if dialErr != nil {
            return nil, nil, dialErr
        }
        return ch, func() error { return nil }, nil
    }
    return p
}

func TestNotifyPublishesJSON(t *testing.T) {
    var dials int
    ch := &fakeChannel{}
    p := newTestPublisher(&dials, ch, nil)

    at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
    p.Notify(context.Background(), engine.Notice{Type: engine.NoticeReserved, ReservationID: 9,
        EventID: 1, UserID: 4, Rank: seat.RankC, Num: 500, At: at})
    p.Notify(context.Background(), engine.Notice{Type: engine.NoticeCanceled, ReservationID: 9,
        EventID: 1, UserID: 4, Rank: seat.RankC, Num: 500, At: at})

    assert.Equal(t, 1, dials, "connection is reused")
    require.Len(t, ch.sent, 2)
    assert.Equal(t, []string{"reservation.events", "reservation.events"}, ch.keys)
    assert.Equal(t, amqp.Persistent, ch.sent[0].DeliveryMode)

    var ev q.ReservationEvent
    require.NoError(t, json.Unmarshal(ch.sent[1].Body, &ev))
    assert.Equal(t, "canceled", ev.Type)
    assert.Equal(t, "C", ev.Rank)
    assert.Equal(t, 500, ev.Num)
}

func TestPublishFailureReconnects(t *testing.T) {
    var dials int
    ch := &fakeChannel{fail: errors.New("channel closed")}
    p := newTestPublisher(&dials, ch, nil)

    err := p.Publish(context.Background(), q.ReservationEvent{Type: "reserved"})
    assert.Error(t, err)
    assert.True(t, ch.closed)

    ch.fail = nil
    require.NoError(t, p.Publish(context.Background(), q.ReservationEvent{Type: "reserved"}))
    assert.Equal(t, 2, dials)
}

func TestNotifySwallowsDialError(t *testing.T) {
    var dials int
    p := newTestPublisher(&dials, nil, errors.New("connection refused"))
    assert.NotPanics(t, func() {
        p.Notify(context.Background(), engine.Notice{Type: engine.NoticeReserved})
    })
    assert.Equal(t, 1, dials)
    assert.NoError(t, p.Close())
}
