// Package catalog serves notification templates and per-type dispatch schedules.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"courier-notifier/internal/common/database"
	"courier-notifier/internal/common/errors"
	"courier-notifier/internal/common/logger"
	"courier-notifier/internal/models"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "notification:template"

type Options struct {
	CacheTTL        time.Duration
	DefaultLanguage string
}

type Catalog struct {
	db     *sql.DB
	cache  redis.Cmdable
	opts   Options
	logger logger.Logger
}

// New builds a catalog. cache may be nil, in which case every lookup reads Postgres.
func New(db *sql.DB, cache redis.Cmdable, opts Options, log logger.Logger) *Catalog {
	return &Catalog{
		db:     db,
		cache:  cache,
		opts:   opts,
		logger: logger.ForComponent(log, "catalog"),
	}
}

// GetActiveSchedule returns the cron expression of the active template of t.
func (c *Catalog) GetActiveSchedule(ctx context.Context, t models.NotificationType) (string, error) {
	var schedule sql.NullString
	err := c.db.QueryRowContext(ctx, `
		SELECT schedule
		FROM notification_templates
		WHERE notification_type = $1 AND status = $2`,
		string(t), string(models.TemplateActive)).Scan(&schedule)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", errors.NewScheduleNotFoundError(string(t))
	}
	if err != nil {
		return "", errors.NewQueryExecutionFailedError("active_schedule", err)
	}
	if strings.TrimSpace(schedule.String) == "" {
		return "", errors.NewScheduleNotFoundError(string(t))
	}
	return strings.TrimSpace(schedule.String), nil
}

// GetTemplate resolves (t, language, receiver), falling back to the default language.
func (c *Catalog) GetTemplate(
	ctx context.Context,
	t models.NotificationType,
	language string,
	receiver models.ReceiverType,
) (*models.NotificationTemplate, error) {
	if language == "" {
		language = c.opts.DefaultLanguage
	}

	tmpl, err := c.lookup(ctx, t, language, receiver)
	if err == nil || !errors.IsNotFound(err) {
		return tmpl, err
	}

	if c.opts.DefaultLanguage != "" && language != c.opts.DefaultLanguage {
		c.logger.Debug("template missing, using default language", map[string]interface{}{
			"notificationType": string(t),
			"language":         language,
			"defaultLanguage":  c.opts.DefaultLanguage,
		})
		return c.lookup(ctx, t, c.opts.DefaultLanguage, receiver)
	}
	return nil, err
}

// UpdateTemplateBody replaces one template body and drops its cache entry.
func (c *Catalog) UpdateTemplateBody(
	ctx context.Context,
	t models.NotificationType,
	language string,
	receiver models.ReceiverType,
	body string,
) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE notification_template_bodies b
		SET body = $4
		FROM notification_templates t
		WHERE b.template_id = t.id
		  AND t.notification_type = $1 AND b.language_code = $2 AND b.receiver_type = $3`,
		string(t), language, string(receiver), body)
	if err != nil {
		return errors.NewQueryExecutionFailedError("update_template_body", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewTemplateNotFoundError(string(t), language, string(receiver))
	}

	c.invalidate(ctx, cacheKey(t, language, receiver))
	return nil
}

// UpdateSchedule stores a new cron expression for t. Callers rearm the scheduler afterwards.
func (c *Catalog) UpdateSchedule(ctx context.Context, t models.NotificationType, schedule string) error {
	return database.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE notification_templates
			SET schedule = $2, updated_at = NOW()
			WHERE notification_type = $1`, string(t), schedule)
		if err != nil {
			return errors.NewQueryExecutionFailedError("update_schedule", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.NewScheduleNotFoundError(string(t))
		}
		return nil
	})
}

func (c *Catalog) lookup(
	ctx context.Context,
	t models.NotificationType,
	language string,
	receiver models.ReceiverType,
) (*models.NotificationTemplate, error) {
	key := cacheKey(t, language, receiver)
	if tmpl, ok := c.fromCache(ctx, key); ok {
		return tmpl, nil
	}

	tmpl, err := c.load(ctx, t, language, receiver)
	if err != nil {
		return nil, err
	}
	c.toCache(ctx, key, tmpl)
	return tmpl, nil
}

func (c *Catalog) load(
	ctx context.Context,
	t models.NotificationType,
	language string,
	receiver models.ReceiverType,
) (*models.NotificationTemplate, error) {
	var (
		tmpl            models.NotificationTemplate
		nt, rt, status  string
		title, schedule sql.NullString
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT t.id, t.notification_type, b.language_code, b.receiver_type,
		       t.title, b.body, t.schedule, t.status
		FROM notification_templates t
		JOIN notification_template_bodies b ON b.template_id = t.id
		WHERE t.notification_type = $1 AND b.language_code = $2 AND b.receiver_type = $3`,
		string(t), language, string(receiver)).Scan(
		&tmpl.ID, &nt, &tmpl.LanguageCode, &rt,
		&title, &tmpl.Body, &schedule, &status,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewTemplateNotFoundError(string(t), language, string(receiver))
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("template", err)
	}

	tmpl.Type = models.NotificationType(nt)
	tmpl.ReceiverType = models.ReceiverType(rt)
	tmpl.Title = title.String
	tmpl.Schedule = schedule.String
	tmpl.Status = models.TemplateStatus(status)
	return &tmpl, nil
}

func (c *Catalog) fromCache(ctx context.Context, key string) (*models.NotificationTemplate, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, err := c.cache.Get(ctx, key).Result()
	if err != nil {
		if !stderrors.Is(err, redis.Nil) {
			c.logger.Warn("template cache read failed", map[string]interface{}{"key": key, "error": err})
		}
		return nil, false
	}

	var tmpl models.NotificationTemplate
	if err := json.Unmarshal([]byte(raw), &tmpl); err != nil {
		c.logger.Warn("template cache entry corrupt", map[string]interface{}{"key": key, "error": err})
		c.invalidate(ctx, key)
		return nil, false
	}
	return &tmpl, true
}

func (c *Catalog) toCache(ctx context.Context, key string, tmpl *models.NotificationTemplate) {
	if c.cache == nil || c.opts.CacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(tmpl)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.opts.CacheTTL).Err(); err != nil {
		c.logger.Warn("template cache write failed", map[string]interface{}{"key": key, "error": err})
	}
}

func (c *Catalog) invalidate(ctx context.Context, key string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("template cache invalidation failed", map[string]interface{}{"key": key, "error": err})
	}
}

func cacheKey(t models.NotificationType, language string, receiver models.ReceiverType) string {
	return fmt.Sprintf("%s:%s:%s:%s", cacheKeyPrefix, t, language, receiver)
}
