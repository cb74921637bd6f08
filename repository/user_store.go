package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	etwin "github.com/eternaltwin/etwin"
	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// ErrUsernameTaken is returned when a new or updated username collides
// with an existing user.
var ErrUsernameTaken = errors.New("username already taken", errors.CategoryConflict).
	WithTextCode("username_taken").
	WithCode(errors.CodeConflict)

// UserStore implements etwin.UserStore on Bun. The first created user
// becomes an administrator.
type UserStore struct {
	db *bun.DB
}

func NewUserStore(db *bun.DB) *UserStore {
	return &UserStore{db: db}
}

var _ etwin.UserStore = (*UserStore)(nil)

func (s *UserStore) GetShortUser(ctx context.Context, ref etwin.UserRef) (*etwin.ShortUser, error) {
	user, err := s.GetUser(ctx, ref)
	if err != nil || user == nil {
		return nil, err
	}
	short := user.Short()
	return &short, nil
}

func (s *UserStore) GetUser(ctx context.Context, ref etwin.UserRef) (*etwin.User, error) {
	full, err := s.GetUserWithPassword(ctx, ref)
	if err != nil || full == nil {
		return nil, err
	}
	user := full.User
	return &user, nil
}

func (s *UserStore) GetUserWithPassword(ctx context.Context, ref etwin.UserRef) (*etwin.UserWithPassword, error) {
	var model UserModel
	err := s.db.NewSelect().
		Model(&model).
		Where("id = ?", ref.ID).
		Scan(ctx)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load user")
	}
	return userFromModel(&model), nil
}

func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*etwin.UserWithPassword, error) {
	var model UserModel
	err := s.db.NewSelect().
		Model(&model).
		Where("username = ?", username).
		Scan(ctx)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load user by username")
	}
	return userFromModel(&model), nil
}

func (s *UserStore) CreateUser(ctx context.Context, opts etwin.CreateUserOptions) (*etwin.User, error) {
	var created *etwin.User
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if opts.Username != "" {
			taken, err := tx.NewSelect().
				Model((*UserModel)(nil)).
				Where("username = ?", opts.Username).
				Exists(ctx)
			if err != nil {
				return errors.Wrap(err, errors.CategoryInternal, "failed to check username")
			}
			if taken {
				return ErrUsernameTaken
			}
		}

		count, err := tx.NewSelect().Model((*UserModel)(nil)).Count(ctx)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to count users")
		}

		model := &UserModel{
			ID:              opts.ID,
			DisplayName:     opts.DisplayName,
			Username:        opts.Username,
			PasswordHash:    opts.PasswordHash,
			IsAdministrator: count == 0,
			CreatedAt:       time.Now(),
		}
		if _, err := tx.NewInsert().Model(model).Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to insert user")
		}
		created = &userFromModel(model).User
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *UserStore) UpdateUser(ctx context.Context, opts etwin.UpdateStoreUserOptions) (*etwin.User, error) {
	var updated *etwin.User
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if opts.Username != nil {
			taken, err := tx.NewSelect().
				Model((*UserModel)(nil)).
				Where("username = ?", *opts.Username).
				Where("id != ?", opts.Ref.ID).
				Exists(ctx)
			if err != nil {
				return errors.Wrap(err, errors.CategoryInternal, "failed to check username")
			}
			if taken {
				return ErrUsernameTaken
			}
		}

		query := tx.NewUpdate().
			Model((*UserModel)(nil)).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", opts.Ref.ID)
		if opts.DisplayName != nil {
			query = query.Set("display_name = ?", *opts.DisplayName)
		}
		if opts.Username != nil {
			query = query.Set("username = ?", *opts.Username)
		}
		if opts.PasswordHash != nil {
			query = query.Set("password_hash = ?", *opts.PasswordHash)
		}

		res, err := query.Exec(ctx)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to update user")
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return nil
		}

		var model UserModel
		if err := tx.NewSelect().Model(&model).Where("id = ?", opts.Ref.ID).Scan(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to reload user")
		}
		updated = &userFromModel(&model).User
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func userFromModel(model *UserModel) *etwin.UserWithPassword {
	return &etwin.UserWithPassword{
		User: etwin.User{
			ID:              model.ID,
			DisplayName:     model.DisplayName,
			Username:        model.Username,
			IsAdministrator: model.IsAdministrator,
			CreatedAt:       model.CreatedAt,
			UpdatedAt:       model.UpdatedAt,
		},
		PasswordHash: model.PasswordHash,
	}
}
