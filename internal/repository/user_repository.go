package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/sheet-reservation/internal/model"
)

// UserRepo reads and writes the users and administrators tables.  Both
// share a layout; passwords arrive already hashed.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts user and returns its ID.  A taken login name yields
// ErrDuplicated.
func (r *UserRepo) Create(ctx context.Context, u model.User) (uint64, error) {
	return r.insert(ctx, "users", u.Nickname, u.LoginName, u.PassHash)
}

// GetByLogin fetches a user by login name.
func (r *UserRepo) GetByLogin(ctx context.Context, loginName string) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, nickname, login_name, pass_hash FROM users WHERE login_name = ? LIMIT 1",
		loginName).Scan(&u.ID, &u.Nickname, &u.LoginName, &u.PassHash)
	return u, notFound(err)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, nickname, login_name, pass_hash FROM users WHERE id = ? LIMIT 1",
		id).Scan(&u.ID, &u.Nickname, &u.LoginName, &u.PassHash)
	return u, notFound(err)
}

// CreateAdministrator inserts an administrator and returns its ID.
func (r *UserRepo) CreateAdministrator(ctx context.Context, a model.Administrator) (uint64, error) {
	return r.insert(ctx, "administrators", a.Nickname, a.LoginName, a.PassHash)
}

// GetAdministratorByLogin fetches an administrator by login name.
func (r *UserRepo) GetAdministratorByLogin(ctx context.Context, loginName string) (model.Administrator, error) {
	var a model.Administrator
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, nickname, login_name, pass_hash FROM administrators WHERE login_name = ? LIMIT 1",
		loginName).Scan(&a.ID, &a.Nickname, &a.LoginName, &a.PassHash)
	return a, notFound(err)
}

// GetAdministratorByID fetches an administrator by id.
func (r *UserRepo) GetAdministratorByID(ctx context.Context, id uint64) (model.Administrator, error) {
	var a model.Administrator
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, nickname, login_name, pass_hash FROM administrators WHERE id = ? LIMIT 1",
		id).Scan(&a.ID, &a.Nickname, &a.LoginName, &a.PassHash)
	return a, notFound(err)
}

// insert is shared by both tables; table is never user input.
func (r *UserRepo) insert(ctx context.Context, table, nickname, loginName, passHash string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO "+table+" (nickname, login_name, pass_hash) VALUES (?, ?, ?)",
		nickname, loginName, passHash)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrDuplicated
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	return err
}
