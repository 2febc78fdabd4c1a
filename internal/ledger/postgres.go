package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the durable Store implementation backed by PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore on the given pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// storeErr wraps unexpected database faults as ErrStore so callers surface
// them as a generic transient failure.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStore, op, err)
}

// InsertVouch implements Store. The ID is assigned by the vouches bigserial.
func (s *PostgresStore) InsertVouch(ctx context.Context, v *Vouch) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	q := `
		INSERT INTO vouches (voucher_id, voucher_name, voucher_tag, target_id, target_name, target_tag,
		                     reason, community_id, created_at, removed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false)
		RETURNING id`
	err := s.db.QueryRow(ctx, q,
		v.VoucherID, v.VoucherDisplayName, v.VoucherTag,
		v.TargetID, v.TargetDisplayName, v.TargetTag,
		v.Reason, v.CommunityID, v.CreatedAt,
	).Scan(&v.ID)
	if err != nil {
		return storeErr("insert vouch", err)
	}
	return nil
}

// GetVouch implements Store.
func (s *PostgresStore) GetVouch(ctx context.Context, id int64) (*Vouch, error) {
	q := `SELECT id, voucher_id, voucher_name, voucher_tag, target_id, target_name, target_tag,
	             reason, community_id, created_at, removed
	      FROM vouches WHERE id = $1`
	v, err := scanVouch(s.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFoundOrRemoved
		}
		return nil, storeErr("get vouch", err)
	}
	return v, nil
}

// MarkRemoved implements Store. The update is conditional on the record
// being live so a race between two delete attempts resolves to exactly one
// winner; the loser sees zero rows matched.
func (s *PostgresStore) MarkRemoved(ctx context.Context, id int64) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE vouches SET removed = true WHERE id = $1 AND removed = false`, id)
	if err != nil {
		return false, storeErr("mark removed", err)
	}
	return tag.RowsAffected() > 0, nil
}

// PurgeTarget implements Store.
func (s *PostgresStore) PurgeTarget(ctx context.Context, communityID, targetID string) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE vouches SET removed = true
		 WHERE community_id = $1 AND target_id = $2 AND removed = false`,
		communityID, targetID)
	if err != nil {
		return 0, storeErr("purge target", err)
	}
	return tag.RowsAffected(), nil
}

// ListVouches implements Store.
func (s *PostgresStore) ListVouches(ctx context.Context, q VouchQuery) ([]Vouch, error) {
	query := `SELECT id, voucher_id, voucher_name, voucher_tag, target_id, target_name, target_tag,
	                 reason, community_id, created_at, removed
	          FROM vouches
	          WHERE ($1 = '' OR community_id = $1)
	            AND ($2 = '' OR voucher_id = $2)
	            AND ($3 = '' OR target_id = $3)
	            AND ($4 OR removed = false)
	          ORDER BY created_at DESC, id DESC`
	rows, err := s.db.Query(ctx, query, q.CommunityID, q.VoucherID, q.TargetID, q.IncludeRemoved)
	if err != nil {
		return nil, storeErr("list vouches", err)
	}
	defer rows.Close()

	var out []Vouch
	for rows.Next() {
		v, err := scanVouch(rows)
		if err != nil {
			return nil, storeErr("scan vouch", err)
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list vouches", err)
	}
	return out, nil
}

// Settings implements Store. An absent row is created with defaults; the
// upsert keeps concurrent first reads from racing each other.
func (s *PostgresStore) Settings(ctx context.Context, communityID string) (*CommunitySettings, error) {
	q := `
		INSERT INTO community_settings (community_id, admin_role_id, trusted_role_id, log_channel_id, decay_half_life_days)
		VALUES ($1, '', '', '', $2)
		ON CONFLICT (community_id) DO UPDATE SET community_id = EXCLUDED.community_id
		RETURNING community_id, admin_role_id, trusted_role_id, log_channel_id, decay_half_life_days`
	var cs CommunitySettings
	err := s.db.QueryRow(ctx, q, communityID, float64(DefaultHalfLifeDays)).Scan(
		&cs.CommunityID, &cs.AdminRoleID, &cs.TrustedRoleID, &cs.LogChannelID, &cs.DecayHalfLifeDays,
	)
	if err != nil {
		return nil, storeErr("get settings", err)
	}
	return &cs, nil
}

// setField updates one settings column, creating the row if needed.
func (s *PostgresStore) setField(ctx context.Context, communityID, column string, value any) error {
	// column is one of a fixed set of identifiers, never user input.
	q := fmt.Sprintf(`
		INSERT INTO community_settings (community_id, admin_role_id, trusted_role_id, log_channel_id, decay_half_life_days)
		VALUES ($1, '', '', '', %g)
		ON CONFLICT (community_id) DO NOTHING`, float64(DefaultHalfLifeDays))
	if _, err := s.db.Exec(ctx, q, communityID); err != nil {
		return storeErr("ensure settings", err)
	}
	upd := fmt.Sprintf(`UPDATE community_settings SET %s = $2 WHERE community_id = $1`, column)
	if _, err := s.db.Exec(ctx, upd, communityID, value); err != nil {
		return storeErr("set "+column, err)
	}
	return nil
}

// SetAdminRole implements Store.
func (s *PostgresStore) SetAdminRole(ctx context.Context, communityID, roleID string) error {
	return s.setField(ctx, communityID, "admin_role_id", roleID)
}

// SetTrustedRole implements Store.
func (s *PostgresStore) SetTrustedRole(ctx context.Context, communityID, roleID string) error {
	return s.setField(ctx, communityID, "trusted_role_id", roleID)
}

// SetLogChannel implements Store.
func (s *PostgresStore) SetLogChannel(ctx context.Context, communityID, channelID string) error {
	return s.setField(ctx, communityID, "log_channel_id", channelID)
}

// SetDecayHalfLife implements Store.
func (s *PostgresStore) SetDecayHalfLife(ctx context.Context, communityID string, days float64) error {
	return s.setField(ctx, communityID, "decay_half_life_days", days)
}

// AddBlacklist implements Store. A duplicate (community, user) pair maps the
// unique-violation error to ErrConflict.
func (s *PostgresStore) AddBlacklist(ctx context.Context, e *BlacklistEntry) error {
	e.ID = uuid.New()
	if e.AddedAt.IsZero() {
		e.AddedAt = time.Now().UTC()
	}
	q := `
		INSERT INTO blacklist (id, community_id, user_id, reason, added_by, added_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.Exec(ctx, q, e.ID, e.CommunityID, e.UserID, e.Reason, e.AddedBy, e.AddedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return storeErr("add blacklist", err)
	}
	return nil
}

// RemoveBlacklist implements Store.
func (s *PostgresStore) RemoveBlacklist(ctx context.Context, communityID, userID string) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM blacklist WHERE community_id = $1 AND user_id = $2`, communityID, userID)
	if err != nil {
		return false, storeErr("remove blacklist", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListBlacklist implements Store.
func (s *PostgresStore) ListBlacklist(ctx context.Context, communityID string) ([]BlacklistEntry, error) {
	q := `SELECT id, community_id, user_id, reason, added_by, added_at
	      FROM blacklist WHERE community_id = $1 ORDER BY added_at DESC`
	rows, err := s.db.Query(ctx, q, communityID)
	if err != nil {
		return nil, storeErr("list blacklist", err)
	}
	defer rows.Close()

	var out []BlacklistEntry
	for rows.Next() {
		var e BlacklistEntry
		if err := rows.Scan(&e.ID, &e.CommunityID, &e.UserID, &e.Reason, &e.AddedBy, &e.AddedAt); err != nil {
			return nil, storeErr("scan blacklist", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list blacklist", err)
	}
	return out, nil
}

// IsBlacklisted implements Store.
func (s *PostgresStore) IsBlacklisted(ctx context.Context, communityID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM blacklist WHERE community_id = $1 AND user_id = $2)`,
		communityID, userID).Scan(&exists)
	if err != nil {
		return false, storeErr("blacklist lookup", err)
	}
	return exists, nil
}

// scanVouch scans one vouch row in column order.
func scanVouch(row pgx.Row) (*Vouch, error) {
	var v Vouch
	err := row.Scan(
		&v.ID, &v.VoucherID, &v.VoucherDisplayName, &v.VoucherTag,
		&v.TargetID, &v.TargetDisplayName, &v.TargetTag,
		&v.Reason, &v.CommunityID, &v.CreatedAt, &v.Removed,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
