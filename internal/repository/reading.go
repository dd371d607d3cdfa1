package repository

import (
	"context"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vladimiradmaev/glucose-monitor/internal/database"
	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	apperrors "github.com/vladimiradmaev/glucose-monitor/internal/errors"
	"github.com/vladimiradmaev/glucose-monitor/internal/logger"
)

// ReadingRepository persists glucose readings
type ReadingRepository struct {
	db *gorm.DB
}

func NewReadingRepository(db *gorm.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// skipDuplicates leaves rows already stored for the same user and measured_at untouched
var skipDuplicates = clause.OnConflict{
	Columns:   []clause.Column{{Name: "user_id"}, {Name: "measured_at"}},
	DoNothing: true,
}

// SaveReadings inserts the batch in one transaction, skipping readings already stored
// for the same user and measured_at. If the transaction fails the rows are retried one
// by one so that valid readings are kept. Only rows actually inserted are returned; an
// error is returned only when rows failed and nothing was saved.
func (r *ReadingRepository) SaveReadings(ctx context.Context, readings []domain.GlucoseReading) ([]domain.GlucoseReading, error) {
	if len(readings) == 0 {
		return nil, nil
	}

	stored, err := r.storedKeys(ctx, readings)
	if err != nil {
		return nil, err
	}
	fresh := newReadings(readings, stored)
	if len(fresh) == 0 {
		logger.Debug("All readings already stored", "rows", len(readings))
		return nil, nil
	}

	rows := make([]database.GlucoseRecord, len(fresh))
	for i, reading := range fresh {
		rows[i] = readingFromDomain(reading)
	}

	var inserted int64
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(skipDuplicates).Create(&rows)
		inserted = result.RowsAffected
		return result.Error
	})
	if err == nil {
		if int(inserted) < len(rows) {
			// another writer stored some of the same readings in between
			return r.keepInserted(ctx, rows)
		}
		return recordsToDomain(rows), nil
	}

	logger.Warn("Batch insert failed, retrying row by row", "error", err, "rows", len(rows))

	var (
		saved   []database.GlucoseRecord
		lastErr error
	)
	for _, reading := range fresh {
		row := readingFromDomain(reading)
		result := r.db.WithContext(ctx).Clauses(skipDuplicates).Create(&row)
		if result.Error != nil {
			lastErr = result.Error
			logger.Warn("Skipping reading", "user_id", reading.UserID, "measured_at", reading.MeasuredAt, "error", result.Error)
			continue
		}
		if result.RowsAffected == 0 {
			continue
		}
		saved = append(saved, row)
	}

	if len(saved) == 0 && lastErr != nil {
		return nil, apperrors.NewDatabaseError(lastErr).WithContext("attempted", len(readings))
	}
	return recordsToDomain(saved), nil
}

func readingKey(userID string, measuredAt time.Time) string {
	// postgres keeps microseconds
	return userID + "|" + strconv.FormatInt(measuredAt.UnixMicro(), 10)
}

// newReadings drops readings already stored and repeats within the batch
func newReadings(readings []domain.GlucoseReading, stored map[string]bool) []domain.GlucoseReading {
	seen := make(map[string]bool, len(readings))
	out := make([]domain.GlucoseReading, 0, len(readings))
	for _, reading := range readings {
		key := readingKey(reading.UserID, reading.MeasuredAt)
		if stored[key] || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, reading)
	}
	return out
}

// storedKeys loads the measured_at values already stored within the time span of
// the batch, per user
func (r *ReadingRepository) storedKeys(ctx context.Context, readings []domain.GlucoseReading) (map[string]bool, error) {
	spans := make(map[string][2]time.Time)
	for _, reading := range readings {
		span, ok := spans[reading.UserID]
		if !ok {
			span = [2]time.Time{reading.MeasuredAt, reading.MeasuredAt}
		}
		if reading.MeasuredAt.Before(span[0]) {
			span[0] = reading.MeasuredAt
		}
		if reading.MeasuredAt.After(span[1]) {
			span[1] = reading.MeasuredAt
		}
		spans[reading.UserID] = span
	}

	stored := make(map[string]bool)
	for userID, span := range spans {
		var times []time.Time
		if err := r.db.WithContext(ctx).Model(&database.GlucoseRecord{}).
			Where("user_id = ? AND measured_at >= ? AND measured_at <= ?", userID, span[0], span[1]).
			Pluck("measured_at", &times).Error; err != nil {
			return nil, dbError(err, "glucose readings")
		}
		for _, t := range times {
			stored[readingKey(userID, t)] = true
		}
	}
	return stored, nil
}

// keepInserted narrows rows to those whose generated ids made it into the table
func (r *ReadingRepository) keepInserted(ctx context.Context, rows []database.GlucoseRecord) ([]domain.GlucoseReading, error) {
	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	var found []string
	if err := r.db.WithContext(ctx).Model(&database.GlucoseRecord{}).
		Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, dbError(err, "glucose readings")
	}
	present := make(map[string]bool, len(found))
	for _, id := range found {
		present[id] = true
	}
	out := make([]domain.GlucoseReading, 0, len(found))
	for i := range rows {
		if present[rows[i].ID] {
			out = append(out, readingToDomain(&rows[i]))
		}
	}
	return out, nil
}

// QueryReadings returns readings in [start, end] ordered oldest first
func (r *ReadingRepository) QueryReadings(ctx context.Context, userID string, start, end time.Time) ([]domain.GlucoseReading, error) {
	var rows []database.GlucoseRecord
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND measured_at >= ? AND measured_at <= ?", userID, start, end).
		Order("measured_at ASC").
		Find(&rows).Error; err != nil {
		return nil, dbError(err, "glucose readings")
	}
	return recordsToDomain(rows), nil
}

func (r *ReadingRepository) GetReading(ctx context.Context, id string) (*domain.GlucoseReading, error) {
	var row database.GlucoseRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, dbError(err, "glucose reading")
	}
	reading := readingToDomain(&row)
	return &reading, nil
}

// UpdateReading overwrites the mutable fields of an existing reading
func (r *ReadingRepository) UpdateReading(ctx context.Context, reading *domain.GlucoseReading) error {
	result := r.db.WithContext(ctx).Model(&database.GlucoseRecord{}).Where("id = ?", reading.ID).
		Updates(map[string]any{
			"value":               reading.Value,
			"measured_at":         reading.MeasuredAt,
			"measurement_context": string(reading.Context),
			"measurement_method":  string(reading.Method),
			"notes":               reading.Notes,
		})
	if result.Error != nil {
		return dbError(result.Error, "glucose reading")
	}
	if result.RowsAffected == 0 {
		return dbError(gorm.ErrRecordNotFound, "glucose reading")
	}
	return nil
}

func (r *ReadingRepository) DeleteReading(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&database.GlucoseRecord{})
	if result.Error != nil {
		return dbError(result.Error, "glucose reading")
	}
	if result.RowsAffected == 0 {
		return dbError(gorm.ErrRecordNotFound, "glucose reading")
	}
	return nil
}

func recordsToDomain(rows []database.GlucoseRecord) []domain.GlucoseReading {
	out := make([]domain.GlucoseReading, len(rows))
	for i := range rows {
		out[i] = readingToDomain(&rows[i])
	}
	return out
}
