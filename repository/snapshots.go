package repository

import (
	"context"
	"encoding/json"
	"time"

	etwin "github.com/eternaltwin/etwin"
	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

const (
	serviceDinoparc   = "dinoparc"
	serviceHammerfest = "hammerfest"
)

// insertSnapshot appends one archival snapshot row with the payload
// serialized as JSON.
func insertSnapshot(ctx context.Context, db bun.IDB, ids etwin.UuidGenerator, service, server, remoteID, kind string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to encode snapshot")
	}
	model := &SnapshotModel{
		ID:        ids.Next(),
		Service:   service,
		Server:    server,
		RemoteID:  remoteID,
		Kind:      kind,
		Payload:   body,
		CreatedAt: time.Now(),
	}
	if _, err := db.NewInsert().Model(model).Exec(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to insert snapshot")
	}
	return nil
}
