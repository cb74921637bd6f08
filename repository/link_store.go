package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	etwin "github.com/eternaltwin/etwin"
	"github.com/eternaltwin/etwin/dinoparc"
	"github.com/eternaltwin/etwin/hammerfest"
	"github.com/eternaltwin/etwin/link"
	"github.com/eternaltwin/etwin/twinoid"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LinkStore is the SQL link store. Rows are append-only link periods; an
// unlink closes the period in place. Touch and delete run inside a
// transaction so the active-link uniqueness checks are atomic.
type LinkStore struct {
	db  *bun.DB
	ids etwin.UuidGenerator
}

type LinkStoreOption func(*LinkStore)

func WithLinkStoreUuidGenerator(ids etwin.UuidGenerator) LinkStoreOption {
	return func(s *LinkStore) {
		if ids != nil {
			s.ids = ids
		}
	}
}

func NewLinkStore(db *bun.DB, opts ...LinkStoreOption) *LinkStore {
	s := &LinkStore{db: db, ids: etwin.Uuid4Generator{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ link.Store = (*LinkStore)(nil)

func rawAction(at time.Time, by uuid.UUID) link.RawAction {
	return link.RawAction{Time: at, By: etwin.UserRef{ID: by}}
}

func rawUnlink(at *time.Time, by *uuid.UUID) *link.RawAction {
	if at == nil {
		return nil
	}
	action := link.RawAction{Time: *at}
	if by != nil {
		action.By = etwin.UserRef{ID: *by}
	}
	return &action
}

func dinoparcRawLink(m *DinoparcLinkModel) link.RawLink[dinoparc.UserRef] {
	return link.RawLink[dinoparc.UserRef]{
		Link:   rawAction(m.LinkedAt, m.LinkedBy),
		Unlink: rawUnlink(m.UnlinkedAt, m.UnlinkedBy),
		Etwin:  etwin.UserRef{ID: m.UserID},
		Remote: dinoparc.UserRef{Server: dinoparc.Server(m.Server), ID: dinoparc.UserId(m.RemoteID)},
	}
}

func hammerfestRawLink(m *HammerfestLinkModel) link.RawLink[hammerfest.UserRef] {
	return link.RawLink[hammerfest.UserRef]{
		Link:   rawAction(m.LinkedAt, m.LinkedBy),
		Unlink: rawUnlink(m.UnlinkedAt, m.UnlinkedBy),
		Etwin:  etwin.UserRef{ID: m.UserID},
		Remote: hammerfest.UserRef{Server: hammerfest.Server(m.Server), ID: hammerfest.UserId(m.RemoteID)},
	}
}

func twinoidRawLink(m *TwinoidLinkModel) link.RawLink[twinoid.UserRef] {
	return link.RawLink[twinoid.UserRef]{
		Link:   rawAction(m.LinkedAt, m.LinkedBy),
		Unlink: rawUnlink(m.UnlinkedAt, m.UnlinkedBy),
		Etwin:  etwin.UserRef{ID: m.UserID},
		Remote: twinoid.UserRef{ID: twinoid.UserId(m.RemoteID)},
	}
}

// versionedRaw splits chronological link periods into the active one and
// the closed history.
func versionedRaw[Ref any](rows []link.RawLink[Ref]) link.VersionedRawLink[Ref] {
	var out link.VersionedRawLink[Ref]
	for i := range rows {
		if rows[i].Unlink == nil {
			current := rows[i]
			out.Current = &current
		} else {
			out.Old = append(out.Old, rows[i])
		}
	}
	return out
}

func (s *LinkStore) GetLinksFromEtwin(ctx context.Context, ref etwin.UserRef) (*link.RawLinks, error) {
	var out link.RawLinks

	var dparcRows []DinoparcLinkModel
	err := s.db.NewSelect().
		Model(&dparcRows).
		Where("user_id = ?", ref.ID).
		Order("linked_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load dinoparc links")
	}
	byDinoparcServer := map[string][]link.RawLink[dinoparc.UserRef]{}
	for i := range dparcRows {
		byDinoparcServer[dparcRows[i].Server] = append(byDinoparcServer[dparcRows[i].Server], dinoparcRawLink(&dparcRows[i]))
	}
	out.DinoparcCom = versionedRaw(byDinoparcServer[string(dinoparc.DinoparcCom)])
	out.EnDinoparcCom = versionedRaw(byDinoparcServer[string(dinoparc.EnDinoparcCom)])
	out.SpDinoparcCom = versionedRaw(byDinoparcServer[string(dinoparc.SpDinoparcCom)])

	var hfestRows []HammerfestLinkModel
	err = s.db.NewSelect().
		Model(&hfestRows).
		Where("user_id = ?", ref.ID).
		Order("linked_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load hammerfest links")
	}
	byHammerfestServer := map[string][]link.RawLink[hammerfest.UserRef]{}
	for i := range hfestRows {
		byHammerfestServer[hfestRows[i].Server] = append(byHammerfestServer[hfestRows[i].Server], hammerfestRawLink(&hfestRows[i]))
	}
	out.HammerfestFr = versionedRaw(byHammerfestServer[string(hammerfest.HammerfestFr)])
	out.HammerfestEs = versionedRaw(byHammerfestServer[string(hammerfest.HammerfestEs)])
	out.HfestNet = versionedRaw(byHammerfestServer[string(hammerfest.HfestNet)])

	var twinoidRows []TwinoidLinkModel
	err = s.db.NewSelect().
		Model(&twinoidRows).
		Where("user_id = ?", ref.ID).
		Order("linked_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load twinoid links")
	}
	twinoidRaw := make([]link.RawLink[twinoid.UserRef], 0, len(twinoidRows))
	for i := range twinoidRows {
		twinoidRaw = append(twinoidRaw, twinoidRawLink(&twinoidRows[i]))
	}
	out.Twinoid = versionedRaw(twinoidRaw)

	return &out, nil
}

func (s *LinkStore) GetLinkFromDinoparc(ctx context.Context, remote dinoparc.UserRef) (*link.VersionedRawLink[dinoparc.UserRef], error) {
	v, err := dinoparcRemoteView(ctx, s.db, remote)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *LinkStore) GetLinkFromHammerfest(ctx context.Context, remote hammerfest.UserRef) (*link.VersionedRawLink[hammerfest.UserRef], error) {
	v, err := hammerfestRemoteView(ctx, s.db, remote)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *LinkStore) GetLinkFromTwinoid(ctx context.Context, remote twinoid.UserRef) (*link.VersionedRawLink[twinoid.UserRef], error) {
	var rows []TwinoidLinkModel
	err := s.db.NewSelect().
		Model(&rows).
		Where("remote_id = ?", string(remote.ID)).
		Order("linked_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load twinoid link")
	}
	raw := make([]link.RawLink[twinoid.UserRef], 0, len(rows))
	for i := range rows {
		raw = append(raw, twinoidRawLink(&rows[i]))
	}
	v := versionedRaw(raw)
	return &v, nil
}

func dinoparcRemoteView(ctx context.Context, db bun.IDB, remote dinoparc.UserRef) (link.VersionedRawLink[dinoparc.UserRef], error) {
	var rows []DinoparcLinkModel
	err := db.NewSelect().
		Model(&rows).
		Where("server = ?", string(remote.Server)).
		Where("remote_id = ?", string(remote.ID)).
		Order("linked_at ASC").
		Scan(ctx)
	if err != nil {
		return link.VersionedRawLink[dinoparc.UserRef]{}, errors.Wrap(err, errors.CategoryInternal, "failed to load dinoparc link")
	}
	raw := make([]link.RawLink[dinoparc.UserRef], 0, len(rows))
	for i := range rows {
		raw = append(raw, dinoparcRawLink(&rows[i]))
	}
	return versionedRaw(raw), nil
}

func hammerfestRemoteView(ctx context.Context, db bun.IDB, remote hammerfest.UserRef) (link.VersionedRawLink[hammerfest.UserRef], error) {
	var rows []HammerfestLinkModel
	err := db.NewSelect().
		Model(&rows).
		Where("server = ?", string(remote.Server)).
		Where("remote_id = ?", string(remote.ID)).
		Order("linked_at ASC").
		Scan(ctx)
	if err != nil {
		return link.VersionedRawLink[hammerfest.UserRef]{}, errors.Wrap(err, errors.CategoryInternal, "failed to load hammerfest link")
	}
	raw := make([]link.RawLink[hammerfest.UserRef], 0, len(rows))
	for i := range rows {
		raw = append(raw, hammerfestRawLink(&rows[i]))
	}
	return versionedRaw(raw), nil
}

func dinoparcEtwinView(ctx context.Context, db bun.IDB, user uuid.UUID, server dinoparc.Server) (link.VersionedRawLink[dinoparc.UserRef], error) {
	var rows []DinoparcLinkModel
	err := db.NewSelect().
		Model(&rows).
		Where("user_id = ?", user).
		Where("server = ?", string(server)).
		Order("linked_at ASC").
		Scan(ctx)
	if err != nil {
		return link.VersionedRawLink[dinoparc.UserRef]{}, errors.Wrap(err, errors.CategoryInternal, "failed to load dinoparc links")
	}
	raw := make([]link.RawLink[dinoparc.UserRef], 0, len(rows))
	for i := range rows {
		raw = append(raw, dinoparcRawLink(&rows[i]))
	}
	return versionedRaw(raw), nil
}

func hammerfestEtwinView(ctx context.Context, db bun.IDB, user uuid.UUID, server hammerfest.Server) (link.VersionedRawLink[hammerfest.UserRef], error) {
	var rows []HammerfestLinkModel
	err := db.NewSelect().
		Model(&rows).
		Where("user_id = ?", user).
		Where("server = ?", string(server)).
		Order("linked_at ASC").
		Scan(ctx)
	if err != nil {
		return link.VersionedRawLink[hammerfest.UserRef]{}, errors.Wrap(err, errors.CategoryInternal, "failed to load hammerfest links")
	}
	raw := make([]link.RawLink[hammerfest.UserRef], 0, len(rows))
	for i := range rows {
		raw = append(raw, hammerfestRawLink(&rows[i]))
	}
	return versionedRaw(raw), nil
}

func twinoidEtwinView(ctx context.Context, db bun.IDB, user uuid.UUID) (link.VersionedRawLink[twinoid.UserRef], error) {
	var rows []TwinoidLinkModel
	err := db.NewSelect().
		Model(&rows).
		Where("user_id = ?", user).
		Order("linked_at ASC").
		Scan(ctx)
	if err != nil {
		return link.VersionedRawLink[twinoid.UserRef]{}, errors.Wrap(err, errors.CategoryInternal, "failed to load twinoid links")
	}
	raw := make([]link.RawLink[twinoid.UserRef], 0, len(rows))
	for i := range rows {
		raw = append(raw, twinoidRawLink(&rows[i]))
	}
	return versionedRaw(raw), nil
}

func (s *LinkStore) TouchDinoparcLink(ctx context.Context, opts link.TouchLinkOptions[dinoparc.UserRef]) (*link.VersionedRawLink[dinoparc.UserRef], error) {
	var view link.VersionedRawLink[dinoparc.UserRef]
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var byRemote DinoparcLinkModel
		err := tx.NewSelect().
			Model(&byRemote).
			Where("server = ?", string(opts.Remote.Server)).
			Where("remote_id = ?", string(opts.Remote.ID)).
			Where("unlinked_at IS NULL").
			Limit(1).
			Scan(ctx)
		switch {
		case err == nil:
			if byRemote.UserID != opts.Etwin.ID {
				return link.ErrRemoteAccountInUse
			}
			// Identical active pair: idempotent no-op.
			view, err = dinoparcEtwinView(ctx, tx, opts.Etwin.ID, opts.Remote.Server)
			return err
		case !stderrors.Is(err, sql.ErrNoRows):
			return errors.Wrap(err, errors.CategoryInternal, "failed to check remote link")
		}

		taken, err := tx.NewSelect().
			Model((*DinoparcLinkModel)(nil)).
			Where("user_id = ?", opts.Etwin.ID).
			Where("server = ?", string(opts.Remote.Server)).
			Where("unlinked_at IS NULL").
			Exists(ctx)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to check user link")
		}
		if taken {
			return link.ErrUserAlreadyLinked
		}

		model := &DinoparcLinkModel{
			ID:       s.ids.Next(),
			UserID:   opts.Etwin.ID,
			Server:   string(opts.Remote.Server),
			RemoteID: string(opts.Remote.ID),
			LinkedAt: time.Now(),
			LinkedBy: opts.LinkedBy.ID,
		}
		if _, err := tx.NewInsert().Model(model).Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to insert link")
		}
		view, err = dinoparcEtwinView(ctx, tx, opts.Etwin.ID, opts.Remote.Server)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *LinkStore) TouchHammerfestLink(ctx context.Context, opts link.TouchLinkOptions[hammerfest.UserRef]) (*link.VersionedRawLink[hammerfest.UserRef], error) {
	var view link.VersionedRawLink[hammerfest.UserRef]
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var byRemote HammerfestLinkModel
		err := tx.NewSelect().
			Model(&byRemote).
			Where("server = ?", string(opts.Remote.Server)).
			Where("remote_id = ?", string(opts.Remote.ID)).
			Where("unlinked_at IS NULL").
			Limit(1).
			Scan(ctx)
		switch {
		case err == nil:
			if byRemote.UserID != opts.Etwin.ID {
				return link.ErrRemoteAccountInUse
			}
			view, err = hammerfestEtwinView(ctx, tx, opts.Etwin.ID, opts.Remote.Server)
			return err
		case !stderrors.Is(err, sql.ErrNoRows):
			return errors.Wrap(err, errors.CategoryInternal, "failed to check remote link")
		}

		taken, err := tx.NewSelect().
			Model((*HammerfestLinkModel)(nil)).
			Where("user_id = ?", opts.Etwin.ID).
			Where("server = ?", string(opts.Remote.Server)).
			Where("unlinked_at IS NULL").
			Exists(ctx)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to check user link")
		}
		if taken {
			return link.ErrUserAlreadyLinked
		}

		model := &HammerfestLinkModel{
			ID:       s.ids.Next(),
			UserID:   opts.Etwin.ID,
			Server:   string(opts.Remote.Server),
			RemoteID: string(opts.Remote.ID),
			LinkedAt: time.Now(),
			LinkedBy: opts.LinkedBy.ID,
		}
		if _, err := tx.NewInsert().Model(model).Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to insert link")
		}
		view, err = hammerfestEtwinView(ctx, tx, opts.Etwin.ID, opts.Remote.Server)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *LinkStore) TouchTwinoidLink(ctx context.Context, opts link.TouchLinkOptions[twinoid.UserRef]) (*link.VersionedRawLink[twinoid.UserRef], error) {
	var view link.VersionedRawLink[twinoid.UserRef]
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var byRemote TwinoidLinkModel
		err := tx.NewSelect().
			Model(&byRemote).
			Where("remote_id = ?", string(opts.Remote.ID)).
			Where("unlinked_at IS NULL").
			Limit(1).
			Scan(ctx)
		switch {
		case err == nil:
			if byRemote.UserID != opts.Etwin.ID {
				return link.ErrRemoteAccountInUse
			}
			view, err = twinoidEtwinView(ctx, tx, opts.Etwin.ID)
			return err
		case !stderrors.Is(err, sql.ErrNoRows):
			return errors.Wrap(err, errors.CategoryInternal, "failed to check remote link")
		}

		taken, err := tx.NewSelect().
			Model((*TwinoidLinkModel)(nil)).
			Where("user_id = ?", opts.Etwin.ID).
			Where("unlinked_at IS NULL").
			Exists(ctx)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to check user link")
		}
		if taken {
			return link.ErrUserAlreadyLinked
		}

		model := &TwinoidLinkModel{
			ID:       s.ids.Next(),
			UserID:   opts.Etwin.ID,
			RemoteID: string(opts.Remote.ID),
			LinkedAt: time.Now(),
			LinkedBy: opts.LinkedBy.ID,
		}
		if _, err := tx.NewInsert().Model(model).Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to insert link")
		}
		view, err = twinoidEtwinView(ctx, tx, opts.Etwin.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *LinkStore) DeleteDinoparcLink(ctx context.Context, opts link.DeleteLinkOptions[dinoparc.UserRef]) (*link.VersionedRawLink[dinoparc.UserRef], error) {
	var view link.VersionedRawLink[dinoparc.UserRef]
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var active DinoparcLinkModel
		err := tx.NewSelect().
			Model(&active).
			Where("user_id = ?", opts.Etwin.ID).
			Where("server = ?", string(opts.Remote.Server)).
			Where("unlinked_at IS NULL").
			Limit(1).
			Scan(ctx)
		switch {
		case stderrors.Is(err, sql.ErrNoRows):
			// Nothing active: no-op.
		case err != nil:
			return errors.Wrap(err, errors.CategoryInternal, "failed to load active link")
		case active.RemoteID != string(opts.Remote.ID):
			return link.ErrLinkMismatch
		default:
			if err := closeLinkPeriod(ctx, tx, (*DinoparcLinkModel)(nil), active.ID, opts.UnlinkedBy.ID); err != nil {
				return err
			}
		}
		view, err = dinoparcEtwinView(ctx, tx, opts.Etwin.ID, opts.Remote.Server)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *LinkStore) DeleteHammerfestLink(ctx context.Context, opts link.DeleteLinkOptions[hammerfest.UserRef]) (*link.VersionedRawLink[hammerfest.UserRef], error) {
	var view link.VersionedRawLink[hammerfest.UserRef]
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var active HammerfestLinkModel
		err := tx.NewSelect().
			Model(&active).
			Where("user_id = ?", opts.Etwin.ID).
			Where("server = ?", string(opts.Remote.Server)).
			Where("unlinked_at IS NULL").
			Limit(1).
			Scan(ctx)
		switch {
		case stderrors.Is(err, sql.ErrNoRows):
		case err != nil:
			return errors.Wrap(err, errors.CategoryInternal, "failed to load active link")
		case active.RemoteID != string(opts.Remote.ID):
			return link.ErrLinkMismatch
		default:
			if err := closeLinkPeriod(ctx, tx, (*HammerfestLinkModel)(nil), active.ID, opts.UnlinkedBy.ID); err != nil {
				return err
			}
		}
		view, err = hammerfestEtwinView(ctx, tx, opts.Etwin.ID, opts.Remote.Server)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *LinkStore) DeleteTwinoidLink(ctx context.Context, opts link.DeleteLinkOptions[twinoid.UserRef]) (*link.VersionedRawLink[twinoid.UserRef], error) {
	var view link.VersionedRawLink[twinoid.UserRef]
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var active TwinoidLinkModel
		err := tx.NewSelect().
			Model(&active).
			Where("user_id = ?", opts.Etwin.ID).
			Where("unlinked_at IS NULL").
			Limit(1).
			Scan(ctx)
		switch {
		case stderrors.Is(err, sql.ErrNoRows):
		case err != nil:
			return errors.Wrap(err, errors.CategoryInternal, "failed to load active link")
		case active.RemoteID != string(opts.Remote.ID):
			return link.ErrLinkMismatch
		default:
			if err := closeLinkPeriod(ctx, tx, (*TwinoidLinkModel)(nil), active.ID, opts.UnlinkedBy.ID); err != nil {
				return err
			}
		}
		view, err = twinoidEtwinView(ctx, tx, opts.Etwin.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// closeLinkPeriod stamps the unlink action on one row.
func closeLinkPeriod(ctx context.Context, tx bun.Tx, model any, id uuid.UUID, by uuid.UUID) error {
	_, err := tx.NewUpdate().
		Model(model).
		Set("unlinked_at = ?", time.Now()).
		Set("unlinked_by = ?", by).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to close link")
	}
	return nil
}
