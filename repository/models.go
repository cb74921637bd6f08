// Package repository provides the SQL-backed stores on Bun. The same
// models work against PostgreSQL in production and SQLite in tests.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserModel is the Bun model for canonical users.
type UserModel struct {
	bun.BaseModel `bun:"table:users"`

	ID              uuid.UUID  `bun:"id,pk,type:uuid"`
	DisplayName     string     `bun:"display_name,notnull"`
	Username        string     `bun:"username,nullzero"`
	PasswordHash    string     `bun:"password_hash,nullzero"`
	IsAdministrator bool       `bun:"is_administrator,notnull"`
	CreatedAt       time.Time  `bun:"created_at,notnull"`
	UpdatedAt       *time.Time `bun:"updated_at"`
}

// DinoparcUserModel is the Bun model for archived Dinoparc users.
type DinoparcUserModel struct {
	bun.BaseModel `bun:"table:dinoparc_users"`

	Server     string    `bun:"server,pk"`
	RemoteID   string    `bun:"remote_id,pk"`
	Username   string    `bun:"username,notnull"`
	ArchivedAt time.Time `bun:"archived_at,notnull"`
}

// HammerfestUserModel is the Bun model for archived Hammerfest users.
type HammerfestUserModel struct {
	bun.BaseModel `bun:"table:hammerfest_users"`

	Server     string    `bun:"server,pk"`
	RemoteID   string    `bun:"remote_id,pk"`
	Username   string    `bun:"username,notnull"`
	ArchivedAt time.Time `bun:"archived_at,notnull"`
}

// TwinoidUserModel is the Bun model for archived Twinoid users.
type TwinoidUserModel struct {
	bun.BaseModel `bun:"table:twinoid_users"`

	RemoteID    string    `bun:"remote_id,pk"`
	DisplayName string    `bun:"display_name,notnull"`
	ArchivedAt  time.Time `bun:"archived_at,notnull"`
}

// DinoparcLinkModel is one link period between a canonical user and a
// Dinoparc account. Rows are append-only; an unlink closes the period.
type DinoparcLinkModel struct {
	bun.BaseModel `bun:"table:dinoparc_links"`

	ID         uuid.UUID  `bun:"id,pk,type:uuid"`
	UserID     uuid.UUID  `bun:"user_id,notnull,type:uuid"`
	Server     string     `bun:"server,notnull"`
	RemoteID   string     `bun:"remote_id,notnull"`
	LinkedAt   time.Time  `bun:"linked_at,notnull"`
	LinkedBy   uuid.UUID  `bun:"linked_by,notnull,type:uuid"`
	UnlinkedAt *time.Time `bun:"unlinked_at"`
	UnlinkedBy *uuid.UUID `bun:"unlinked_by,type:uuid"`
}

// HammerfestLinkModel is one link period for a Hammerfest account.
type HammerfestLinkModel struct {
	bun.BaseModel `bun:"table:hammerfest_links"`

	ID         uuid.UUID  `bun:"id,pk,type:uuid"`
	UserID     uuid.UUID  `bun:"user_id,notnull,type:uuid"`
	Server     string     `bun:"server,notnull"`
	RemoteID   string     `bun:"remote_id,notnull"`
	LinkedAt   time.Time  `bun:"linked_at,notnull"`
	LinkedBy   uuid.UUID  `bun:"linked_by,notnull,type:uuid"`
	UnlinkedAt *time.Time `bun:"unlinked_at"`
	UnlinkedBy *uuid.UUID `bun:"unlinked_by,type:uuid"`
}

// TwinoidLinkModel is one link period for a Twinoid account.
type TwinoidLinkModel struct {
	bun.BaseModel `bun:"table:twinoid_links"`

	ID         uuid.UUID  `bun:"id,pk,type:uuid"`
	UserID     uuid.UUID  `bun:"user_id,notnull,type:uuid"`
	RemoteID   string     `bun:"remote_id,notnull"`
	LinkedAt   time.Time  `bun:"linked_at,notnull"`
	LinkedBy   uuid.UUID  `bun:"linked_by,notnull,type:uuid"`
	UnlinkedAt *time.Time `bun:"unlinked_at"`
	UnlinkedBy *uuid.UUID `bun:"unlinked_by,type:uuid"`
}

// SnapshotModel is an archival snapshot: the raw page payload serialized
// as JSON, keyed by realm and kind. Snapshots are append-only.
type SnapshotModel struct {
	bun.BaseModel `bun:"table:snapshots"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	Service   string    `bun:"service,notnull"`
	Server    string    `bun:"server,nullzero"`
	RemoteID  string    `bun:"remote_id,notnull"`
	Kind      string    `bun:"kind,notnull"`
	Payload   []byte    `bun:"payload,notnull,type:jsonb"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

var models = []any{
	(*UserModel)(nil),
	(*DinoparcUserModel)(nil),
	(*HammerfestUserModel)(nil),
	(*TwinoidUserModel)(nil),
	(*DinoparcLinkModel)(nil),
	(*HammerfestLinkModel)(nil),
	(*TwinoidLinkModel)(nil),
	(*SnapshotModel)(nil),
}

// Migrate creates every table this package needs. It is idempotent.
func Migrate(ctx context.Context, db *bun.DB) error {
	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
