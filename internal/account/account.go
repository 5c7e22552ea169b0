// Package account registers and authenticates users and administrators and
// assembles a user's reservation history.
package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/sheet-reservation/internal/engine"
	"github.com/iliyamo/sheet-reservation/internal/model"
	"github.com/iliyamo/sheet-reservation/internal/repository"
	"github.com/iliyamo/sheet-reservation/internal/seat"
	"github.com/iliyamo/sheet-reservation/internal/utils"
)

var (
	ErrInvalidInput         = errors.New("invalid_input")
	ErrDuplicated           = errors.New("duplicated")
	ErrAuthenticationFailed = errors.New("authentication_failed")
	ErrNotFound             = errors.New("not_found")
)

// recentLimit bounds the history lists of a profile.
const recentLimit = 5

// Store persists users and administrators and answers history queries.
type Store interface {
	CreateUser(ctx context.Context, u model.User) (uint64, error)
	UserByLogin(ctx context.Context, loginName string) (model.User, error)
	UserByID(ctx context.Context, id uint64) (model.User, error)
	CreateAdministrator(ctx context.Context, a model.Administrator) (uint64, error)
	AdministratorByLogin(ctx context.Context, loginName string) (model.Administrator, error)
	AdministratorByID(ctx context.Context, id uint64) (model.Administrator, error)
	// RecentReservations returns the user's rows ordered by their latest
	// change (canceled_at, else reserved_at), newest first.
	RecentReservations(ctx context.Context, userID uint64, limit int) ([]model.Reservation, error)
	// ActiveTotalPrice sums event price plus rank delta over the user's
	// active reservations.
	ActiveTotalPrice(ctx context.Context, userID uint64) (int64, error)
	// RecentEventIDs returns the events the user touched most recently.
	RecentEventIDs(ctx context.Context, userID uint64, limit int) ([]uint64, error)
}

// Viewer builds event views for a profile.
type Viewer interface {
	GetEventView(ctx context.Context, eventID, viewerID uint64, detail bool) (engine.EventView, error)
}

// Service implements account operations.
type Service struct {
	store      Store
	views      Viewer
	bcryptCost int
	log        *zap.Logger
}

func New(store Store, views Viewer, bcryptCost int, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, views: views, bcryptCost: bcryptCost, log: log}
}

// Identity is the public part of a user or administrator.
type Identity struct {
	ID       uint64 `json:"id"`
	Nickname string `json:"nickname"`
}

// Register creates a user.
func (s *Service) Register(ctx context.Context, nickname, loginName, password string) (Identity, error) {
	nickname = strings.TrimSpace(nickname)
	loginName = strings.TrimSpace(loginName)
	if nickname == "" || loginName == "" || password == "" {
		return Identity{}, ErrInvalidInput
	}
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return Identity{}, err
	}
	id, err := s.store.CreateUser(ctx, model.User{Nickname: nickname, LoginName: loginName, PassHash: hash})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicated) {
			return Identity{}, ErrDuplicated
		}
		return Identity{}, err
	}
	s.log.Info("user registered", zap.Uint64("user_id", id))
	return Identity{ID: id, Nickname: nickname}, nil
}

// Login verifies a user's password.
func (s *Service) Login(ctx context.Context, loginName, password string) (Identity, error) {
	u, err := s.store.UserByLogin(ctx, strings.TrimSpace(loginName))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Identity{}, ErrAuthenticationFailed
		}
		return Identity{}, err
	}
	if !utils.VerifyPassword(u.PassHash, password) {
		return Identity{}, ErrAuthenticationFailed
	}
	return Identity{ID: u.ID, Nickname: u.Nickname}, nil
}

// AdminLogin verifies an administrator's password.
func (s *Service) AdminLogin(ctx context.Context, loginName, password string) (Identity, error) {
	a, err := s.store.AdministratorByLogin(ctx, strings.TrimSpace(loginName))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Identity{}, ErrAuthenticationFailed
		}
		return Identity{}, err
	}
	if !utils.VerifyPassword(a.PassHash, password) {
		return Identity{}, ErrAuthenticationFailed
	}
	return Identity{ID: a.ID, Nickname: a.Nickname}, nil
}

// EnsureAdministrator creates the administrator unless the login name is
// already taken.  It is used to seed an empty store.
func (s *Service) EnsureAdministrator(ctx context.Context, nickname, loginName, password string) error {
	if _, err := s.store.AdministratorByLogin(ctx, loginName); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return err
	}
	id, err := s.store.CreateAdministrator(ctx, model.Administrator{Nickname: nickname, LoginName: loginName, PassHash: hash})
	if err != nil && !errors.Is(err, repository.ErrDuplicated) {
		return err
	}
	if err == nil {
		s.log.Info("administrator seeded", zap.Uint64("admin_id", id), zap.String("login_name", loginName))
	}
	return nil
}

// User returns the identity of a user, ErrNotFound when missing.
func (s *Service) User(ctx context.Context, id uint64) (Identity, error) {
	u, err := s.store.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, err
	}
	return Identity{ID: u.ID, Nickname: u.Nickname}, nil
}

// Administrator returns the identity of an administrator.
func (s *Service) Administrator(ctx context.Context, id uint64) (Identity, error) {
	a, err := s.store.AdministratorByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, err
	}
	return Identity{ID: a.ID, Nickname: a.Nickname}, nil
}

// EventSummary is an event without its seating.
type EventSummary struct {
	ID     uint64 `json:"id"`
	Title  string `json:"title"`
	Public bool   `json:"public"`
	Closed bool   `json:"closed"`
	Price  int64  `json:"price"`
}

// RecentReservation is one entry of a profile's history.
type RecentReservation struct {
	ID         uint64       `json:"id"`
	Event      EventSummary `json:"event"`
	SheetRank  seat.Rank    `json:"sheet_rank"`
	SheetNum   int          `json:"sheet_num"`
	Price      int64        `json:"price"`
	ReservedAt int64        `json:"reserved_at"`
	CanceledAt *int64       `json:"canceled_at"`
}

// Profile is the page of a user about their own activity.
type Profile struct {
	ID                 uint64              `json:"id"`
	Nickname           string              `json:"nickname"`
	RecentReservations []RecentReservation `json:"recent_reservations"`
	TotalPrice         int64               `json:"total_price"`
	RecentEvents       []engine.EventView  `json:"recent_events"`
}

// Profile returns the history of userID.  Only the user may read it.
func (s *Service) Profile(ctx context.Context, userID, requesterID uint64) (Profile, error) {
	id, err := s.User(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if userID != requesterID {
		return Profile{}, repository.ErrForbidden
	}
	p := Profile{ID: id.ID, Nickname: id.Nickname,
		RecentReservations: []RecentReservation{}, RecentEvents: []engine.EventView{}}

	rows, err := s.store.RecentReservations(ctx, userID, recentLimit)
	if err != nil {
		return Profile{}, err
	}
	for _, r := range rows {
		v, err := s.views.GetEventView(ctx, r.EventID, 0, false)
		if err != nil {
			return Profile{}, err
		}
		rank, num := r.Seat()
		rr := RecentReservation{
			ID:         r.ID,
			Event:      EventSummary{ID: v.ID, Title: v.Title, Public: v.Public, Closed: v.Closed, Price: v.Price},
			SheetRank:  rank,
			SheetNum:   num,
			Price:      v.Sheets[rank].Price,
			ReservedAt: r.ReservedAt.Unix(),
		}
		if r.CanceledAt != nil {
			rr.CanceledAt = unixPtr(*r.CanceledAt)
		}
		p.RecentReservations = append(p.RecentReservations, rr)
	}

	if p.TotalPrice, err = s.store.ActiveTotalPrice(ctx, userID); err != nil {
		return Profile{}, err
	}

	ids, err := s.store.RecentEventIDs(ctx, userID, recentLimit)
	if err != nil {
		return Profile{}, err
	}
	for _, eid := range ids {
		v, err := s.views.GetEventView(ctx, eid, 0, false)
		if err != nil {
			return Profile{}, err
		}
		p.RecentEvents = append(p.RecentEvents, v)
	}
	return p, nil
}

func unixPtr(t time.Time) *int64 {
	u := t.Unix()
	return &u
}
