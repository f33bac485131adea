// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgerrors "attachment-platform/pkg/errors"
)

// pgStore PostgreSQL 实现，使用 attachment_records 表。
// 依赖迁移建表：
//
//	attachment_records(id TEXT PRIMARY KEY, mime_type TEXT, slot TEXT,
//	  owner_type TEXT NOT NULL DEFAULT '', owner_id TEXT NOT NULL DEFAULT '',
//	  attributes JSONB, created_at BIGINT, updated_at BIGINT)
//	UNIQUE INDEX uq_attachment_slot ON (owner_type, owner_id, slot) WHERE slot IS NOT NULL
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 创建基于 PostgreSQL 的附件记录仓库；poolSize ≤0 使用 pgx 默认
func NewPostgresStore(ctx context.Context, dsn string, poolSize int) (Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if poolSize > 0 {
		config.MaxConns = int32(poolSize)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &pgStore{pool: pool}, nil
}

// isSlotUniqueViolation 槽位唯一索引冲突
func isSlotUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "uq_attachment_slot"
}

// Create 创建附件记录
func (s *pgStore) Create(ctx context.Context, rec *FileRecord) error {
	now := time.Now().Unix()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO attachment_records (id, mime_type, slot, owner_type, owner_id, attributes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.MimeType, rec.Slot, rec.OwnerType, rec.OwnerID, attrs, rec.CreatedAt, rec.UpdatedAt,
	)
	if isSlotUniqueViolation(err) {
		return pkgerrors.Wrapf(pkgerrors.ErrSlotOccupied, "slot %v", rec.Slot)
	}
	return err
}

// Get 根据 ID 获取附件记录
func (s *pgStore) Get(ctx context.Context, id string) (*FileRecord, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT id, mime_type, slot, owner_type, owner_id, attributes, created_at, updated_at
FROM attachment_records WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "record %s", id)
	}
	return rec, err
}

// Update 更新附件记录（不含槽位）
func (s *pgStore) Update(ctx context.Context, rec *FileRecord) error {
	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE attachment_records SET mime_type = $1, attributes = $2, updated_at = $3 WHERE id = $4`,
		rec.MimeType, attrs, time.Now().Unix(), rec.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pkgerrors.Wrapf(pkgerrors.ErrNotFound, "record %s", rec.ID)
	}
	return nil
}

// Delete 根据 ID 删除附件记录
func (s *pgStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM attachment_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pkgerrors.Wrapf(pkgerrors.ErrNotFound, "record %s", id)
	}
	return nil
}

// GetBySlot 获取槽位占用者；owner 为 nil 时查无主记录
func (s *pgStore) GetBySlot(ctx context.Context, slot string, owner *Owner) (*FileRecord, error) {
	ownerType, ownerID := "", ""
	if owner != nil {
		ownerType, ownerID = owner.Type, owner.ID
	}
	rec, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT id, mime_type, slot, owner_type, owner_id, attributes, created_at, updated_at
FROM attachment_records WHERE owner_type = $1 AND owner_id = $2 AND slot = $3`,
		ownerType, ownerID, slot))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// AssignSlot 检查后赋值，检查与赋值在同一事务内（行锁防并发写者）
func (s *pgStore) AssignSlot(ctx context.Context, id string, slot *string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var ownerType, ownerID string
	err = tx.QueryRow(ctx,
		`SELECT owner_type, owner_id FROM attachment_records WHERE id = $1 FOR UPDATE`,
		id).Scan(&ownerType, &ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return pkgerrors.Wrapf(pkgerrors.ErrNotFound, "record %s", id)
	}
	if err != nil {
		return err
	}

	if slot != nil {
		var holder string
		err = tx.QueryRow(ctx,
			`SELECT id FROM attachment_records
WHERE owner_type = $1 AND owner_id = $2 AND slot = $3 AND id <> $4 FOR UPDATE`,
			ownerType, ownerID, *slot, id).Scan(&holder)
		if err == nil {
			return pkgerrors.Wrapf(pkgerrors.ErrSlotOccupied, "slot %q held by %s", *slot, holder)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE attachment_records SET slot = $1, updated_at = $2 WHERE id = $3`,
		slot, time.Now().Unix(), id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// List 按条件列出附件记录
func (s *pgStore) List(ctx context.Context, filter *Filter) ([]*FileRecord, error) {
	query := `SELECT id, mime_type, slot, owner_type, owner_id, attributes, created_at, updated_at
FROM attachment_records`
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Owner != nil {
			conds = append(conds, "owner_type = "+arg(filter.Owner.Type))
			conds = append(conds, "owner_id = "+arg(filter.Owner.ID))
		} else if filter.Unattached {
			conds = append(conds, "owner_type = ''", "owner_id = ''")
		}
		if len(filter.MimeTypes) > 0 {
			conds = append(conds, "mime_type = ANY("+arg(filter.MimeTypes)+")")
		}
		if len(filter.Slots) > 0 {
			conds = append(conds, "slot = ANY("+arg(filter.Slots)+")")
		}
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

// Close 关闭连接池
func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}

// scanRecord 从行扫描附件记录
func scanRecord(row pgx.Row) (*FileRecord, error) {
	var rec FileRecord
	var attrs []byte
	if err := row.Scan(&rec.ID, &rec.MimeType, &rec.Slot, &rec.OwnerType, &rec.OwnerID,
		&attrs, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if len(attrs) > 0 {
		_ = json.Unmarshal(attrs, &rec.Attributes)
	}
	return &rec, nil
}
