package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/eternaltwin/etwin/twinoid"
	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// TwinoidStore is the SQL Twinoid archive. Twinoid exposes no page
// snapshots, only the short user record.
type TwinoidStore struct {
	db *bun.DB
}

func NewTwinoidStore(db *bun.DB) *TwinoidStore {
	return &TwinoidStore{db: db}
}

var _ twinoid.Store = (*TwinoidStore)(nil)

func (s *TwinoidStore) GetShortUser(ctx context.Context, ref twinoid.UserRef) (*twinoid.ShortUser, error) {
	var model TwinoidUserModel
	err := s.db.NewSelect().
		Model(&model).
		Where("remote_id = ?", string(ref.ID)).
		Scan(ctx)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load twinoid user")
	}
	return &twinoid.ShortUser{
		ID:          twinoid.UserId(model.RemoteID),
		DisplayName: model.DisplayName,
	}, nil
}

func (s *TwinoidStore) TouchShortUser(ctx context.Context, short twinoid.ShortUser) (*twinoid.ArchivedUser, error) {
	model := &TwinoidUserModel{
		RemoteID:    string(short.ID),
		DisplayName: short.DisplayName,
		ArchivedAt:  time.Now(),
	}
	_, err := s.db.NewInsert().
		Model(model).
		On("CONFLICT (remote_id) DO UPDATE").
		Set("display_name = EXCLUDED.display_name").
		Set("archived_at = EXCLUDED.archived_at").
		Exec(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to touch twinoid user")
	}
	return &twinoid.ArchivedUser{ShortUser: short, ArchivedAt: model.ArchivedAt}, nil
}
