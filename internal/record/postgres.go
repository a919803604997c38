package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

const schema = `
create table if not exists plate_records (
    id           uuid primary key,
    plate_number text not null,
    confidence   double precision not null,
    timestamp    timestamptz not null default now(),
    image_data   text not null default '',
    processed    integer not null default 0,
    notes        text
);
create index if not exists plate_records_timestamp_idx on plate_records (timestamp desc);`

const selectColumns = `id, plate_number, confidence, timestamp, image_data, processed, notes`

// PostgresStore はPostgreSQLに記録を保存する
type PostgresStore struct {
	DB  *sql.DB
	now func() time.Time
}

// OpenPostgres は接続を開き、スキーマを作成する
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベースに到達できません: %w", err)
	}

	store := NewPostgresStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStore は既存の接続からPostgresStoreを作成する
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db, now: time.Now}
}

// EnsureSchema はテーブルがなければ作成する
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("スキーマの作成に失敗: %w", err)
	}
	return nil
}

// Create は記録を挿入する
func (s *PostgresStore) Create(ctx context.Context, in Input) (*Record, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	const q = `
insert into plate_records (id, plate_number, confidence, timestamp, image_data, processed, notes)
values ($1, $2, $3, $4, $5, $6, $7)
returning ` + selectColumns

	row := s.DB.QueryRowContext(ctx, q,
		uuid.NewString(), in.PlateNumber, in.Confidence, s.now(), in.ImageData, in.Processed, in.Notes)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("記録の作成に失敗: %w", err)
	}
	return rec, nil
}

// Get はIDで記録を取得する
func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.DB.QueryRowContext(ctx, `select `+selectColumns+` from plate_records where id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("記録の取得に失敗: %w", err)
	}
	return rec, nil
}

// orderClauses は並び順ごとの order by 句
var orderClauses = map[SortKey]string{
	SortByTimestamp:   `timestamp desc, id`,
	SortByPlateNumber: `plate_number, timestamp desc, id`,
	SortByConfidence:  `confidence desc, timestamp desc, id`,
}

// List は条件に合う記録を並べ替えて返す
func (s *PostgresStore) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	order, ok := orderClauses[opts.Sort]
	if !ok {
		order = orderClauses[SortByTimestamp]
	}

	q := `select ` + selectColumns + ` from plate_records
where $1::text = ''
   or strpos(lower(plate_number), lower($1)) > 0
   or strpos(to_char(timestamp, 'YYYY-MM-DD'), $1) > 0
order by ` + order
	return s.query(ctx, q, strings.TrimSpace(opts.Query))
}

// Recent は新しい順に最大 limit 件を返す
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return s.query(ctx, `select `+selectColumns+` from plate_records order by timestamp desc, id limit $1`, limit)
}

// Today は当日作成された記録を返す
func (s *PostgresStore) Today(ctx context.Context) ([]Record, error) {
	return s.query(ctx, `select `+selectColumns+` from plate_records where timestamp >= $1 order by timestamp desc, id`,
		startOfDay(s.now()))
}

// Delete は記録を削除する。存在しなければ false を返す
func (s *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `delete from plate_records where id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("記録の削除に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return n > 0, nil
}

// Stats は件数と成功率を集計する
func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	const q = `
select count(*),
       count(*) filter (where timestamp >= $1),
       count(*) filter (where processed = 1)
from plate_records`

	var total, today, processed int
	if err := s.DB.QueryRowContext(ctx, q, startOfDay(s.now())).Scan(&total, &today, &processed); err != nil {
		return Stats{}, fmt.Errorf("統計の取得に失敗: %w", err)
	}
	return Stats{
		Total:       total,
		Today:       today,
		SuccessRate: successRate(processed, total),
	}, nil
}

// Close は接続を閉じる
func (s *PostgresStore) Close() error {
	return s.DB.Close()
}

func (s *PostgresStore) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("記録の検索に失敗: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("記録の読み取りに失敗: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記録の読み取りに失敗: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec   Record
		notes sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.PlateNumber, &rec.Confidence, &rec.Timestamp,
		&rec.ImageData, &rec.Processed, &notes); err != nil {
		return nil, err
	}
	if notes.Valid {
		rec.Notes = &notes.String
	}
	return &rec, nil
}
