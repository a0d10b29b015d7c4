package db

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/realtime"
	"github.com/vibecampus/vibehub/pkg/logging"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Repository provides database access methods
type Repository struct {
	db        *gorm.DB
	publisher realtime.Publisher
	logger    *zap.Logger
}

// NewRepository creates a new repository. Mutations announce their
// changes through publisher after commit; nil disables announcements.
func NewRepository(db *gorm.DB, publisher realtime.Publisher) *Repository {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &Repository{
		db:        db,
		publisher: publisher,
		logger:    logging.GetLogger().With(zap.String("component", "repository")),
	}
}

// DB returns the underlying gorm handle
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// Publisher returns the change publisher
func (r *Repository) Publisher() realtime.Publisher {
	return r.publisher
}

// Publish announces a committed change. Failures are logged; the
// write they describe has already succeeded.
func (r *Repository) Publish(ctx context.Context, table string, typ realtime.EventType, newRec, oldRec interface{}) {
	ch, err := realtime.NewChange(table, typ, newRec, oldRec)
	if err != nil {
		r.logger.Error("Failed to build change", zap.String("table", table), zap.Error(err))
		return
	}
	if err := r.publisher.Publish(ctx, ch); err != nil {
		r.logger.Error("Failed to publish change", zap.String("table", table), zap.Error(err))
	}
}

// PublishAll announces a batch of changes collected inside a transaction
func (r *Repository) PublishAll(ctx context.Context, changes []realtime.Change) {
	for _, ch := range changes {
		if err := r.publisher.Publish(ctx, ch); err != nil {
			r.logger.Error("Failed to publish change", zap.String("table", ch.Table), zap.Error(err))
		}
	}
}

// paginate applies a clamped offset/limit window
func paginate(q *gorm.DB, offset, limit int) *gorm.DB {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return q.Offset(offset).Limit(limit)
}

// search adds a case-insensitive substring match over columns
func search(q *gorm.DB, term string, columns ...string) *gorm.DB {
	term = strings.TrimSpace(term)
	if term == "" {
		return q
	}
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	clauses := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	for _, col := range columns {
		clauses = append(clauses, "LOWER("+col+`) LIKE ? ESCAPE '\'`)
		args = append(args, pattern)
	}
	return q.Where(strings.Join(clauses, " OR "), args...)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// getByID loads one row by id, returning (nil, nil) when missing
func getByID[T any](ctx context.Context, q *gorm.DB, id string) (*T, error) {
	var rec T
	if err := q.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// upsert inserts rec or, when a row with id exists, updates its
// non-zero fields; the matching change is published after commit
func upsert[T any](ctx context.Context, r *Repository, table, id string, rec *T) error {
	var old T
	existed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Limit(1).Find(&old)
		if res.Error != nil {
			return res.Error
		}
		existed = res.RowsAffected > 0
		if existed {
			return tx.Model(rec).Omit(clause.Associations, "created_at").Updates(rec).Error
		}
		return tx.Omit(clause.Associations).Create(rec).Error
	})
	if err != nil {
		return err
	}
	if existed {
		r.Publish(ctx, table, realtime.EventUpdate, rec, &old)
	} else {
		r.Publish(ctx, table, realtime.EventInsert, rec, nil)
	}
	return nil
}

// deleteOwned removes the row with id when ownerCol equals ownerID
func deleteOwned[T any](ctx context.Context, r *Repository, table, id, ownerCol, ownerID string) error {
	var old T
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND "+ownerCol+" = ?", id, ownerID).Limit(1).Find(&old)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("Not found or not yours to delete")
		}
		return tx.Where("id = ?", id).Delete(new(T)).Error
	})
	if err != nil {
		return err
	}
	r.Publish(ctx, table, realtime.EventDelete, nil, &old)
	return nil
}
