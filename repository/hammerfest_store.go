package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	etwin "github.com/eternaltwin/etwin"
	"github.com/eternaltwin/etwin/hammerfest"
	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// HammerfestStore is the SQL Hammerfest archive.
type HammerfestStore struct {
	db  *bun.DB
	ids etwin.UuidGenerator
}

type HammerfestStoreOption func(*HammerfestStore)

func WithHammerfestStoreUuidGenerator(ids etwin.UuidGenerator) HammerfestStoreOption {
	return func(s *HammerfestStore) {
		if ids != nil {
			s.ids = ids
		}
	}
}

func NewHammerfestStore(db *bun.DB, opts ...HammerfestStoreOption) *HammerfestStore {
	s := &HammerfestStore{db: db, ids: etwin.Uuid4Generator{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ hammerfest.Store = (*HammerfestStore)(nil)

func (s *HammerfestStore) GetShortUser(ctx context.Context, ref hammerfest.UserRef) (*hammerfest.ShortUser, error) {
	var model HammerfestUserModel
	err := s.db.NewSelect().
		Model(&model).
		Where("server = ?", string(ref.Server)).
		Where("remote_id = ?", string(ref.ID)).
		Scan(ctx)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load hammerfest user")
	}
	return &hammerfest.ShortUser{
		Server:   hammerfest.Server(model.Server),
		ID:       hammerfest.UserId(model.RemoteID),
		Username: model.Username,
	}, nil
}

func (s *HammerfestStore) TouchShortUser(ctx context.Context, short hammerfest.ShortUser) (*hammerfest.ArchivedUser, error) {
	model := &HammerfestUserModel{
		Server:     string(short.Server),
		RemoteID:   string(short.ID),
		Username:   short.Username,
		ArchivedAt: time.Now(),
	}
	_, err := s.db.NewInsert().
		Model(model).
		On("CONFLICT (server, remote_id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Set("archived_at = EXCLUDED.archived_at").
		Exec(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to touch hammerfest user")
	}
	return &hammerfest.ArchivedUser{ShortUser: short, ArchivedAt: model.ArchivedAt}, nil
}

func (s *HammerfestStore) TouchProfile(ctx context.Context, resp *hammerfest.ProfileResponse) error {
	if _, err := s.TouchShortUser(ctx, resp.Profile.User); err != nil {
		return err
	}
	if resp.Session != nil {
		if _, err := s.TouchShortUser(ctx, resp.Session.User); err != nil {
			return err
		}
	}
	return insertSnapshot(ctx, s.db, s.ids, serviceHammerfest,
		string(resp.Profile.User.Server), string(resp.Profile.User.ID),
		"profile", resp)
}

func (s *HammerfestStore) TouchInventory(ctx context.Context, resp *hammerfest.InventoryResponse) error {
	if _, err := s.TouchShortUser(ctx, resp.Session.User); err != nil {
		return err
	}
	return insertSnapshot(ctx, s.db, s.ids, serviceHammerfest,
		string(resp.Session.User.Server), string(resp.Session.User.ID),
		"inventory", resp)
}

func (s *HammerfestStore) TouchShop(ctx context.Context, resp *hammerfest.ShopResponse) error {
	if _, err := s.TouchShortUser(ctx, resp.Session.User); err != nil {
		return err
	}
	return insertSnapshot(ctx, s.db, s.ids, serviceHammerfest,
		string(resp.Session.User.Server), string(resp.Session.User.ID),
		"shop", resp)
}

func (s *HammerfestStore) TouchGodchildren(ctx context.Context, resp *hammerfest.GodchildrenResponse) error {
	if _, err := s.TouchShortUser(ctx, resp.Session.User); err != nil {
		return err
	}
	for _, godchild := range resp.Godchildren {
		if _, err := s.TouchShortUser(ctx, godchild.User); err != nil {
			return err
		}
	}
	return insertSnapshot(ctx, s.db, s.ids, serviceHammerfest,
		string(resp.Session.User.Server), string(resp.Session.User.ID),
		"godchildren", resp)
}
