package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	etwin "github.com/eternaltwin/etwin"
	"github.com/eternaltwin/etwin/dinoparc"
	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// DinoparcStore is the SQL Dinoparc archive: upserted short users plus
// append-only page snapshots.
type DinoparcStore struct {
	db  *bun.DB
	ids etwin.UuidGenerator
}

type DinoparcStoreOption func(*DinoparcStore)

func WithDinoparcStoreUuidGenerator(ids etwin.UuidGenerator) DinoparcStoreOption {
	return func(s *DinoparcStore) {
		if ids != nil {
			s.ids = ids
		}
	}
}

func NewDinoparcStore(db *bun.DB, opts ...DinoparcStoreOption) *DinoparcStore {
	s := &DinoparcStore{db: db, ids: etwin.Uuid4Generator{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ dinoparc.Store = (*DinoparcStore)(nil)

func (s *DinoparcStore) GetShortUser(ctx context.Context, ref dinoparc.UserRef) (*dinoparc.ShortUser, error) {
	var model DinoparcUserModel
	err := s.db.NewSelect().
		Model(&model).
		Where("server = ?", string(ref.Server)).
		Where("remote_id = ?", string(ref.ID)).
		Scan(ctx)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load dinoparc user")
	}
	return &dinoparc.ShortUser{
		Server:   dinoparc.Server(model.Server),
		ID:       dinoparc.UserId(model.RemoteID),
		Username: model.Username,
	}, nil
}

func (s *DinoparcStore) TouchShortUser(ctx context.Context, short dinoparc.ShortUser) (*dinoparc.ArchivedUser, error) {
	model := &DinoparcUserModel{
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
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to touch dinoparc user")
	}
	return &dinoparc.ArchivedUser{ShortUser: short, ArchivedAt: model.ArchivedAt}, nil
}

func (s *DinoparcStore) TouchInventory(ctx context.Context, resp *dinoparc.InventoryResponse) error {
	if _, err := s.TouchShortUser(ctx, resp.SessionUser.User); err != nil {
		return err
	}
	return insertSnapshot(ctx, s.db, s.ids, serviceDinoparc,
		string(resp.SessionUser.User.Server), string(resp.SessionUser.User.ID),
		"inventory", resp)
}

func (s *DinoparcStore) TouchCollection(ctx context.Context, resp *dinoparc.CollectionResponse) error {
	if _, err := s.TouchShortUser(ctx, resp.SessionUser.User); err != nil {
		return err
	}
	return insertSnapshot(ctx, s.db, s.ids, serviceDinoparc,
		string(resp.SessionUser.User.Server), string(resp.SessionUser.User.ID),
		"collection", resp)
}

func (s *DinoparcStore) TouchDinoz(ctx context.Context, resp *dinoparc.DinozResponse) error {
	if _, err := s.TouchShortUser(ctx, resp.SessionUser.User); err != nil {
		return err
	}
	return insertSnapshot(ctx, s.db, s.ids, serviceDinoparc,
		string(resp.Dinoz.Server), string(resp.Dinoz.ID),
		"dinoz", resp)
}

func (s *DinoparcStore) TouchExchangeWith(ctx context.Context, resp *dinoparc.ExchangeWithResponse) error {
	if _, err := s.TouchShortUser(ctx, resp.SessionUser.User); err != nil {
		return err
	}
	if _, err := s.TouchShortUser(ctx, resp.OtherUser); err != nil {
		return err
	}
	return insertSnapshot(ctx, s.db, s.ids, serviceDinoparc,
		string(resp.SessionUser.User.Server), string(resp.SessionUser.User.ID),
		"exchange_with", resp)
}
