package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/lunchplan/internal/model"
)

// PostgresDayStatusRepo はPostgreSQLを使用したランチ予定リポジトリ。
type PostgresDayStatusRepo struct {
	db *sql.DB
}

// NewPostgresDayStatusRepo はPostgresDayStatusRepoを生成する。
func NewPostgresDayStatusRepo(db *sql.DB) *PostgresDayStatusRepo {
	return &PostgresDayStatusRepo{db: db}
}

const dayStatusColumns = `id, user_id, group_id, iso_week, weekday, status, arrival_time,
	location, start_location, eat_location, note, visibility, created_at, updated_at`

// scanDayStatus は1行をDayStatusに読み取る。
func scanDayStatus(scan func(dest ...any) error) (*model.DayStatus, error) {
	var (
		d                                model.DayStatus
		groupID, status, arrival         sql.NullString
		location, startLoc, eatLoc, note sql.NullString
		visibility                       string
	)
	if err := scan(
		&d.ID, &d.UserID, &groupID, &d.ISOWeek, &d.Weekday, &status, &arrival,
		&location, &startLoc, &eatLoc, &note, &visibility, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}

	d.GroupID = nullStringPtr(groupID)
	if status.Valid {
		s := model.Status(status.String)
		d.Status = &s
	}
	d.ArrivalTime = nullStringPtr(arrival)
	d.Location = nullStringPtr(location)
	d.StartLocation = nullStringPtr(startLoc)
	d.EatLocation = nullStringPtr(eatLoc)
	d.Note = nullStringPtr(note)
	d.Visibility = model.Visibility(visibility)
	return &d, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func statusParam(s *model.Status) any {
	if s == nil {
		return nil
	}
	return string(*s)
}

func stringParam(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// FindByKey は複合キーに一致する予定を取得する。見つからない場合はnilを返す。
func (r *PostgresDayStatusRepo) FindByKey(ctx context.Context, key model.StatusKey) (*model.DayStatus, error) {
	d, err := scanDayStatus(r.db.QueryRowContext(ctx,
		`SELECT `+dayStatusColumns+`
		 FROM day_statuses
		 WHERE user_id = $1 AND group_id IS NOT DISTINCT FROM $2::uuid
		   AND iso_week = $3 AND weekday = $4`,
		key.UserID, stringParam(key.GroupID), key.ISOWeek, key.Weekday,
	).Scan)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("予定の取得に失敗しました: %w", err)
	}
	return d, nil
}

// ListByUserDay はユーザーの指定週・曜日の予定をグループを問わず全て返す。
func (r *PostgresDayStatusRepo) ListByUserDay(ctx context.Context, userID, isoWeek string, weekday int) ([]*model.DayStatus, error) {
	return r.query(ctx,
		`SELECT `+dayStatusColumns+`
		 FROM day_statuses
		 WHERE user_id = $1 AND iso_week = $2 AND weekday = $3
		 ORDER BY group_id NULLS FIRST, id`,
		userID, isoWeek, weekday,
	)
}

// ListCandidates は閲覧者に見える可能性のある予定を週単位で返す。
// 閲覧者自身の予定、GroupIDsに属する予定、PersonalOwnerIDsのgroup_only個人予定が対象。
func (r *PostgresDayStatusRepo) ListCandidates(ctx context.Context, q CandidateQuery) ([]*model.DayStatus, error) {
	groupIDs := q.GroupIDs
	if groupIDs == nil {
		groupIDs = []string{}
	}
	ownerIDs := q.PersonalOwnerIDs
	if ownerIDs == nil {
		ownerIDs = []string{}
	}

	return r.query(ctx,
		`SELECT `+dayStatusColumns+`
		 FROM day_statuses
		 WHERE iso_week = $1
		   AND (
		       user_id = $2
		       OR group_id = ANY($3::uuid[])
		       OR (group_id IS NULL AND visibility = 'group_only' AND user_id = ANY($4::uuid[]))
		   )
		 ORDER BY user_id, weekday, group_id NULLS FIRST, id`,
		q.ISOWeek, q.ViewerID, pq.Array(groupIDs), pq.Array(ownerIDs),
	)
}

func (r *PostgresDayStatusRepo) query(ctx context.Context, query string, args ...any) ([]*model.DayStatus, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("予定一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var statuses []*model.DayStatus
	for rows.Next() {
		d, err := scanDayStatus(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("予定行の読み取りに失敗しました: %w", err)
		}
		statuses = append(statuses, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("予定一覧の走査に失敗しました: %w", err)
	}
	return statuses, nil
}

// Upsert は複合キーで予定を冪等にUPSERTする。
// 既存行と値が同じ場合はWHERE句で更新を抑止し、updated_atを変えない。
// その場合RETURNINGが行を返さないため、既存行を読み直して返す。
func (r *PostgresDayStatusRepo) Upsert(ctx context.Context, s *model.DayStatus) (*model.DayStatus, error) {
	id := s.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now()

	saved := *s
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO day_statuses
		     (id, user_id, group_id, iso_week, weekday, status, arrival_time,
		      location, start_location, eat_location, note, visibility, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		 ON CONFLICT ON CONSTRAINT uq_day_statuses_key DO UPDATE SET
		     status = EXCLUDED.status,
		     arrival_time = EXCLUDED.arrival_time,
		     location = EXCLUDED.location,
		     start_location = EXCLUDED.start_location,
		     eat_location = EXCLUDED.eat_location,
		     note = EXCLUDED.note,
		     visibility = EXCLUDED.visibility,
		     updated_at = EXCLUDED.updated_at
		 WHERE (day_statuses.status, day_statuses.arrival_time, day_statuses.location,
		        day_statuses.start_location, day_statuses.eat_location, day_statuses.note,
		        day_statuses.visibility)
		   IS DISTINCT FROM
		       (EXCLUDED.status, EXCLUDED.arrival_time, EXCLUDED.location,
		        EXCLUDED.start_location, EXCLUDED.eat_location, EXCLUDED.note,
		        EXCLUDED.visibility)
		 RETURNING id, created_at, updated_at`,
		id, s.UserID, stringParam(s.GroupID), s.ISOWeek, s.Weekday,
		statusParam(s.Status), stringParam(s.ArrivalTime),
		stringParam(s.Location), stringParam(s.StartLocation), stringParam(s.EatLocation),
		stringParam(s.Note), string(s.Visibility), now,
	).Scan(&saved.ID, &saved.CreatedAt, &saved.UpdatedAt)

	if err == sql.ErrNoRows {
		existing, findErr := r.FindByKey(ctx, s.Key())
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			return nil, fmt.Errorf("予定の保存結果を取得できませんでした")
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("予定の保存に失敗しました: %w", err)
	}
	return &saved, nil
}

// DeleteByKey は複合キーに一致する予定を削除する。削除したかどうかを返す。
func (r *PostgresDayStatusRepo) DeleteByKey(ctx context.Context, key model.StatusKey) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM day_statuses
		 WHERE user_id = $1 AND group_id IS NOT DISTINCT FROM $2::uuid
		   AND iso_week = $3 AND weekday = $4`,
		key.UserID, stringParam(key.GroupID), key.ISOWeek, key.Weekday,
	)
	if err != nil {
		return false, fmt.Errorf("予定の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteByUserWeek はユーザーの指定週の予定を削除する（groupIDがnilの場合は個人予定）。
func (r *PostgresDayStatusRepo) DeleteByUserWeek(ctx context.Context, userID, isoWeek string, groupID *string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM day_statuses
		 WHERE user_id = $1 AND group_id IS NOT DISTINCT FROM $2::uuid AND iso_week = $3`,
		userID, stringParam(groupID), isoWeek,
	)
	if err != nil {
		return 0, fmt.Errorf("週の予定の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	return rowsAffected, nil
}

// compile-time interface check
var _ DayStatusRepository = (*PostgresDayStatusRepo)(nil)
