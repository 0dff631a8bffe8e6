package autoattendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/sqlc"
)

// SQLStore implements Store on the MariaDB schema through sqlc queries.
type SQLStore struct {
	queries *sqlc.Queries
}

func NewSQLStore(queries *sqlc.Queries) *SQLStore {
	return &SQLStore{queries: queries}
}

// civilDate maps a calendar day onto the UTC midnight the DATE columns are
// read and written as (the DSN uses loc=UTC).
func civilDate(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *SQLStore) ListApprovedLeavesCovering(ctx context.Context, day time.Time) ([]LeaveRecord, error) {
	d := civilDate(day)
	rows, err := s.queries.ListApprovedLeavesCovering(ctx, sqlc.ListApprovedLeavesCoveringParams{
		Day:   d,
		Day_2: d,
	})
	if err != nil {
		return nil, err
	}

	leaves := make([]LeaveRecord, 0, len(rows))
	for _, row := range rows {
		leaves = append(leaves, LeaveRecord{
			ID:        row.ID,
			StudentID: row.StudentID,
			StartDate: row.StartDate,
			EndDate:   row.EndDate,
			Status:    LeaveStatus(row.Status),
			Reason:    row.Reason.String,
		})
	}
	return leaves, nil
}

func (s *SQLStore) GetAttendance(ctx context.Context, studentID string, day time.Time) (AttendanceRecord, bool, error) {
	row, err := s.queries.GetAttendanceByStudentAndDate(ctx, sqlc.GetAttendanceByStudentAndDateParams{
		StudentID: studentID,
		Date:      civilDate(day),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return AttendanceRecord{}, false, nil
	}
	if err != nil {
		return AttendanceRecord{}, false, err
	}

	return AttendanceRecord{
		ID:        row.ID,
		StudentID: row.StudentID,
		Date:      row.Date,
		Status:    AttendanceStatus(row.Status),
		Source:    Source(row.Source),
		LeaveID:   row.LeaveID.String,
		MarkedAt:  row.MarkedAt.Time,
	}, true, nil
}

// UpsertAttendance reports applied=false when the row exists and the
// conditional update kept it. MySQL counts 1 for an insert, 2 for an update
// and 0 when nothing changed.
func (s *SQLStore) UpsertAttendance(ctx context.Context, rec AttendanceRecord, overwrite bool) (bool, error) {
	n, err := s.queries.UpsertAttendance(ctx, sqlc.UpsertAttendanceParams{
		ID:        rec.ID,
		StudentID: rec.StudentID,
		Date:      civilDate(rec.Date),
		Status:    sqlc.AttendanceStatus(rec.Status),
		Source:    sqlc.AttendanceSource(rec.Source),
		LeaveID:   sql.NullString{String: rec.LeaveID, Valid: rec.LeaveID != ""},
		MarkedAt:  sql.NullTime{Time: rec.MarkedAt, Valid: !rec.MarkedAt.IsZero()},
		Overwrite: overwrite,
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
