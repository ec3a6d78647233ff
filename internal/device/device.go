// Package device implements the adapter for the tablet's task database, a
// MySQL-family server exposed on the local network. Tasks live in
// t_schedule_task and categories in t_schedule_task_group; both use soft
// deletes (is_deleted = 'Y') and millisecond timestamps where 0 means absent.
package device

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/tonimelisma/tasksync/internal/sync"
	"github.com/tonimelisma/tasksync/internal/task"
)

// notesMaxRunes is the capacity of the detail column (varchar(255)).
const notesMaxRunes = 255

// inboxName is the virtual category for tasks with a NULL task_list_id.
const inboxName = "Inbox"

// idPattern matches the UUID-style identifiers the Device generates. All
// access goes through bound parameters; this validation is defense in depth
// against identifiers leaking in from a corrupted sync state.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Config holds the Device connection parameters.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// Adapter talks to the Device database. It is not safe for concurrent use;
// the engine runs strictly serially.
type Adapter struct {
	db     *sql.DB
	logger *slog.Logger

	userID     int64
	userIDSet  bool
	categories map[string]string // task_list_id -> title, nil until loaded
}

var _ sync.DeviceAdapter = (*Adapter)(nil)

// Open connects to the Device database.
func Open(cfg Config, logger *slog.Logger) (*Adapter, error) {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.DBName = cfg.Database
	mc.Timeout = 10 * time.Second

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("device: building connector: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(2)

	return &Adapter{db: db, logger: logger}, nil
}

// Close releases the database connection.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// TestConnection reports whether the database answers a trivial query.
func (a *Adapter) TestConnection(ctx context.Context) bool {
	var one int
	if err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		a.logger.Debug("device connection test failed", "error", err)
		return false
	}

	return true
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("device: empty ID")
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("device: invalid ID format: %q", id)
	}

	return nil
}

// newID generates a Device-style identifier: a UUID as 32 hex characters.
func newID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// getUserID discovers the single user's ID: from any existing task, falling
// back to the user table, falling back to 1 on an empty database.
func (a *Adapter) getUserID(ctx context.Context) (int64, error) {
	if a.userIDSet {
		return a.userID, nil
	}

	var id int64
	err := a.db.QueryRowContext(ctx,
		"SELECT DISTINCT user_id FROM t_schedule_task LIMIT 1").Scan(&id)
	if err == sql.ErrNoRows {
		err = a.db.QueryRowContext(ctx, "SELECT id FROM u_user LIMIT 1").Scan(&id)
		if err == sql.ErrNoRows {
			id, err = 1, nil
		}
	}
	if err != nil {
		return 0, fmt.Errorf("device: discovering user ID: %w", err)
	}

	a.userID = id
	a.userIDSet = true

	return id, nil
}

// loadCategories fills the category cache from t_schedule_task_group.
func (a *Adapter) loadCategories(ctx context.Context) (map[string]string, error) {
	if a.categories != nil {
		return a.categories, nil
	}

	rows, err := a.db.QueryContext(ctx,
		"SELECT task_list_id, title FROM t_schedule_task_group WHERE is_deleted = 'N'")
	if err != nil {
		return nil, fmt.Errorf("device: listing categories: %w", err)
	}
	defer rows.Close()

	cats := make(map[string]string)
	for rows.Next() {
		var id, title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, fmt.Errorf("device: scanning category: %w", err)
		}

		cats[id] = DecodeText(title)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("device: reading categories: %w", err)
	}

	a.categories = cats

	return cats, nil
}

func (a *Adapter) invalidateCategories() {
	a.categories = nil
}

// categoryIDByName resolves a category name case-insensitively, returning
// "" when no such category exists.
func (a *Adapter) categoryIDByName(ctx context.Context, name string) (string, error) {
	cats, err := a.loadCategories(ctx)
	if err != nil {
		return "", err
	}

	for id, title := range cats {
		if strings.EqualFold(title, name) {
			return id, nil
		}
	}

	return "", nil
}

// ListCategories returns all live categories. The Inbox is virtual (NULL
// task_list_id) and is not included.
func (a *Adapter) ListCategories(ctx context.Context) ([]sync.Category, error) {
	cats, err := a.loadCategories(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]sync.Category, 0, len(cats))
	for id, title := range cats {
		out = append(out, sync.Category{ID: id, Name: title})
	}

	return out, nil
}

// CreateCategory inserts a new category and returns its ID.
func (a *Adapter) CreateCategory(ctx context.Context, name string) (string, error) {
	userID, err := a.getUserID(ctx)
	if err != nil {
		return "", err
	}

	id := newID()
	nowMS := time.Now().UnixMilli()

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO t_schedule_task_group (
			task_list_id, user_id, title, last_modified, is_deleted, create_time
		) VALUES (?, ?, ?, ?, 'N', ?)`,
		id, userID, EncodeText(name), nowMS, nowMS,
	)
	if err != nil {
		return "", fmt.Errorf("device: creating category %q: %w", name, err)
	}

	a.invalidateCategories()
	a.logger.Info("created device category", "name", name, "id", id)

	return id, nil
}

// RenameCategory updates a category's title in place.
func (a *Adapter) RenameCategory(ctx context.Context, id, newName string) error {
	if err := validateID(id); err != nil {
		return err
	}

	_, err := a.db.ExecContext(ctx, `
		UPDATE t_schedule_task_group SET title = ?, last_modified = ?
		WHERE task_list_id = ?`,
		EncodeText(newName), time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("device: renaming category %s: %w", id, err)
	}

	a.invalidateCategories()

	return nil
}

const taskColumns = `
	t.task_id,
	t.task_list_id,
	t.title,
	t.detail,
	t.status,
	t.importance,
	t.due_time,
	t.completed_time,
	t.last_modified,
	t.create_time,
	t.links,
	COALESCE(g.title, 'Inbox') AS category_name`

const taskFrom = `
	FROM t_schedule_task t
	LEFT JOIN t_schedule_task_group g ON t.task_list_id = g.task_list_id`

// ListTasks returns live tasks, optionally filtered to one category by name
// ("Inbox" selects the NULL category) and optionally excluding completed
// tasks.
func (a *Adapter) ListTasks(ctx context.Context, category string, includeCompleted bool) ([]*task.Task, error) {
	where := []string{"t.is_deleted = 'N'"}
	var args []any

	if category != "" {
		if strings.EqualFold(category, inboxName) {
			where = append(where, "t.task_list_id IS NULL")
		} else {
			catID, err := a.categoryIDByName(ctx, category)
			if err != nil {
				return nil, err
			}
			if catID == "" {
				return nil, nil
			}

			where = append(where, "t.task_list_id = ?")
			args = append(args, catID)
		}
	}

	if !includeCompleted {
		where = append(where, "t.status = ?")
		args = append(args, task.StatusNeedsAction)
	}

	query := "SELECT" + taskColumns + taskFrom +
		" WHERE " + strings.Join(where, " AND ") +
		" ORDER BY t.last_modified DESC"

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("device: listing tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}

		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("device: reading tasks: %w", err)
	}

	return tasks, nil
}

// GetTask returns one task by ID, or (nil, nil) when it does not exist or
// is soft-deleted.
func (a *Adapter) GetTask(ctx context.Context, id string) (*task.Task, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	query := "SELECT" + taskColumns + taskFrom +
		" WHERE t.task_id = ? AND t.is_deleted = 'N'"

	rows, err := a.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("device: getting task %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	return scanTask(rows)
}

// scanTask converts one result row into a Task, decoding sentinels and
// millisecond timestamps.
func scanTask(rows *sql.Rows) (*task.Task, error) {
	var (
		taskID, status, categoryName        string
		listID, title, detail, links        sql.NullString
		importance                          sql.NullInt64
		dueMS, completedMS, modMS, createMS sql.NullInt64
	)

	err := rows.Scan(&taskID, &listID, &title, &detail, &status, &importance,
		&dueMS, &completedMS, &modMS, &createMS, &links, &categoryName)
	if err != nil {
		return nil, fmt.Errorf("device: scanning task: %w", err)
	}

	t := &task.Task{
		DeviceID:  taskID,
		Title:     DecodeText(title.String),
		Notes:     DecodeText(detail.String),
		Category:  DecodeText(categoryName),
		Completed: status == task.StatusCompleted,
		Priority:  int(importance.Int64),
	}

	t.DueDate = msToTime(dueMS)
	t.CompletionDate = msToTime(completedMS)
	t.ModifiedAt = msToTime(modMS)
	t.CreatedAt = msToTime(createMS)

	if links.Valid {
		t.DocumentLink = task.DocumentLinkFromBase64(links.String)
	}

	return t, nil
}

// msToTime converts a millisecond timestamp column to a time pointer;
// NULL and 0 both mean absent.
func msToTime(v sql.NullInt64) *time.Time {
	if !v.Valid || v.Int64 <= 0 {
		return nil
	}

	t := time.UnixMilli(v.Int64)

	return &t
}

// timeToMS is the inverse of msToTime; absent times are stored as 0.
func timeToMS(t *time.Time) int64 {
	if t == nil {
		return 0
	}

	return t.UnixMilli()
}

// resolveListID maps a task's category name to a column value, creating the
// category when createMissing is set. The Inbox maps to NULL.
func (a *Adapter) resolveListID(ctx context.Context, category string, createMissing bool) (sql.NullString, error) {
	if category == "" || strings.EqualFold(category, inboxName) {
		return sql.NullString{}, nil
	}

	catID, err := a.categoryIDByName(ctx, category)
	if err != nil {
		return sql.NullString{}, err
	}

	if catID == "" {
		if !createMissing {
			return sql.NullString{}, nil
		}

		catID, err = a.CreateCategory(ctx, category)
		if err != nil {
			return sql.NullString{}, err
		}
	}

	return sql.NullString{String: catID, Valid: true}, nil
}

// CreateTask inserts a new task and returns its Device ID.
func (a *Adapter) CreateTask(ctx context.Context, t *task.Task) (string, error) {
	id := t.DeviceID
	if id == "" {
		id = newID()
	}
	if err := validateID(id); err != nil {
		return "", err
	}

	userID, err := a.getUserID(ctx)
	if err != nil {
		return "", err
	}

	listID, err := a.resolveListID(ctx, t.Category, true)
	if err != nil {
		return "", err
	}

	nowMS := time.Now().UnixMilli()
	notes := truncateRunes(EncodeText(t.Notes), notesMaxRunes)

	var links sql.NullString
	if t.DocumentLink != nil {
		links = sql.NullString{String: t.DocumentLink.ToBase64(), Valid: true}
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO t_schedule_task (
			task_id, task_list_id, user_id, title, detail,
			last_modified, is_reminder_on, status, importance,
			due_time, completed_time, links, is_deleted, create_time,
			sort_time, planer_sort_time, all_sort_time
		) VALUES (?, ?, ?, ?, ?, ?, 'N', ?, ?, ?, ?, ?, 'N', ?, ?, ?, ?)`,
		id, listID, userID, EncodeText(t.Title), notes,
		nowMS, t.Status(), nullablePriority(t.Priority),
		timeToMS(t.DueDate), timeToMS(t.CompletionDate), links,
		nowMS, nowMS, nowMS, nowMS,
	)
	if err != nil {
		return "", fmt.Errorf("device: creating task %q: %w", t.Title, err)
	}

	t.DeviceID = id

	return id, nil
}

// UpdateTask rewrites a task's synced fields. The stored document link is
// preserved when the incoming task does not carry one; the Host side never
// does.
func (a *Adapter) UpdateTask(ctx context.Context, t *task.Task) error {
	if err := validateID(t.DeviceID); err != nil {
		return err
	}

	if t.DocumentLink == nil {
		existing, err := a.GetTask(ctx, t.DeviceID)
		if err != nil {
			return err
		}
		if existing != nil {
			t.DocumentLink = existing.DocumentLink
		}
	}

	listID, err := a.resolveListID(ctx, t.Category, false)
	if err != nil {
		return err
	}

	notes := truncateRunes(EncodeText(t.Notes), notesMaxRunes)

	var links sql.NullString
	if t.DocumentLink != nil {
		links = sql.NullString{String: t.DocumentLink.ToBase64(), Valid: true}
	}

	_, err = a.db.ExecContext(ctx, `
		UPDATE t_schedule_task SET
			task_list_id = ?,
			title = ?,
			detail = ?,
			status = ?,
			importance = ?,
			due_time = ?,
			completed_time = ?,
			links = ?,
			last_modified = ?
		WHERE task_id = ?`,
		listID, EncodeText(t.Title), notes, t.Status(),
		nullablePriority(t.Priority),
		timeToMS(t.DueDate), timeToMS(t.CompletionDate), links,
		time.Now().UnixMilli(), t.DeviceID,
	)
	if err != nil {
		return fmt.Errorf("device: updating task %s: %w", t.DeviceID, err)
	}

	return nil
}

// DeleteTask removes a task. Soft deletion flags the row, which is what the
// Device's own UI does; hard deletion removes it outright.
func (a *Adapter) DeleteTask(ctx context.Context, id string, soft bool) error {
	if err := validateID(id); err != nil {
		return err
	}

	var err error
	if soft {
		_, err = a.db.ExecContext(ctx, `
			UPDATE t_schedule_task SET is_deleted = 'Y', last_modified = ?
			WHERE task_id = ?`,
			time.Now().UnixMilli(), id,
		)
	} else {
		_, err = a.db.ExecContext(ctx, "DELETE FROM t_schedule_task WHERE task_id = ?", id)
	}
	if err != nil {
		return fmt.Errorf("device: deleting task %s: %w", id, err)
	}

	return nil
}

// nullablePriority stores priority 0 as NULL, matching rows the Device
// creates itself.
func nullablePriority(p int) sql.NullInt64 {
	if p == 0 {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: int64(p), Valid: true}
}
