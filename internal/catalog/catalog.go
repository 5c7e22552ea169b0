// Package catalog lets administrators create events and change their
// public and closed flags.
package catalog

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/sheet-reservation/internal/engine"
	"github.com/iliyamo/sheet-reservation/internal/model"
	"github.com/iliyamo/sheet-reservation/internal/repository"
)

var (
	ErrEventNotFound     = errors.New("not_found")
	ErrCannotEditClosed  = errors.New("cannot_edit_closed_event")
	ErrCannotClosePublic = errors.New("cannot_close_public_event")
	ErrInvalidEvent      = errors.New("invalid_event")
)

// Store persists events.
type Store interface {
	// CreateEvent inserts the event together with a zero availability
	// counter per rank, atomically, and returns its id.
	CreateEvent(ctx context.Context, ev model.Event) (uint64, error)
	// EditEvent locks the event, passes it to fn and stores the returned
	// flags.  Nothing is written when fn fails.
	EditEvent(ctx context.Context, id uint64, fn func(model.Event) (model.Event, error)) error
}

// Viewer builds event views after a change.
type Viewer interface {
	GetEventView(ctx context.Context, eventID, viewerID uint64, detail bool) (engine.EventView, error)
}

// Service implements the catalog operations.
type Service struct {
	store Store
	views Viewer
	log   *zap.Logger
}

func New(store Store, views Viewer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, views: views, log: log}
}

// Create adds an event and returns its detailed view.
func (s *Service) Create(ctx context.Context, title string, public bool, price int64) (engine.EventView, error) {
	title = strings.TrimSpace(title)
	if title == "" || price < 0 {
		return engine.EventView{}, ErrInvalidEvent
	}
	id, err := s.store.CreateEvent(ctx, model.Event{Title: title, Public: public, Price: price})
	if err != nil {
		return engine.EventView{}, err
	}
	s.log.Info("event created", zap.Uint64("event_id", id), zap.String("title", title), zap.Bool("public", public))
	return s.views.GetEventView(ctx, id, 0, true)
}

// Edit changes the flags of an event.  Closing forces public off.  A
// closed event cannot be edited and a public event cannot be closed.
func (s *Service) Edit(ctx context.Context, id uint64, public, closed bool) (engine.EventView, error) {
	if closed {
		public = false
	}
	err := s.store.EditEvent(ctx, id, func(ev model.Event) (model.Event, error) {
		return ApplyFlags(ev, public, closed)
	})
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return engine.EventView{}, ErrEventNotFound
		}
		return engine.EventView{}, err
	}
	s.log.Info("event edited", zap.Uint64("event_id", id), zap.Bool("public", public), zap.Bool("closed", closed))
	return s.views.GetEventView(ctx, id, 0, true)
}

// ApplyFlags validates a flag transition and returns the updated event.
func ApplyFlags(ev model.Event, public, closed bool) (model.Event, error) {
	if closed {
		public = false
	}
	switch {
	case ev.Closed:
		return ev, ErrCannotEditClosed
	case ev.Public && closed:
		return ev, ErrCannotClosePublic
	}
	ev.Public = public
	ev.Closed = closed
	return ev, nil
}
