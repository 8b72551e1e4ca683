package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/isdelr/taskdeck/internal/models"
	"github.com/isdelr/taskdeck/internal/schema"
)

var selectTasks = "SELECT " + strings.Join(schema.TaskColumns(), ", ") + " FROM " + schema.TableTasks

// AddTask inserts a task owned by ownerID and returns it with its new id.
func (s *Store) AddTask(ctx context.Context, name, startDate, endDate string, ownerID int64) (task models.Task, err error) {
	const op = "add_task"
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	db, err := s.acquire(ctx, op)
	if err != nil {
		return models.Task{}, err
	}
	defer release(db)

	res, err := db.ExecContext(ctx,
		"INSERT INTO "+schema.TableTasks+" ("+schema.TaskName+", "+schema.TaskStartDate+", "+
			schema.TaskEndDate+", "+schema.TaskUserID+") VALUES (?, ?, ?, ?)",
		name, startDate, endDate, ownerID)
	if err != nil {
		return models.Task{}, classify(op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Task{}, classify(op, err)
	}

	owner := ownerID
	return models.Task{ID: id, Name: name, StartDate: startDate, EndDate: endDate, OwnerID: &owner}, nil
}

// UpdateTask rewrites the name and dates of task id. The owner never changes.
// Fails with ErrNotFound when no row has that id.
func (s *Store) UpdateTask(ctx context.Context, id int64, name, startDate, endDate string) (err error) {
	const op = "update_task"
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	db, err := s.acquire(ctx, op)
	if err != nil {
		return err
	}
	defer release(db)

	res, err := db.ExecContext(ctx,
		"UPDATE "+schema.TableTasks+" SET "+schema.TaskName+" = ?, "+schema.TaskStartDate+" = ?, "+
			schema.TaskEndDate+" = ? WHERE "+schema.TaskID+" = ?",
		name, startDate, endDate, id)
	return affectedOne(op, res, err)
}

// DeleteTask removes task id. Fails with ErrNotFound when no row has that id.
func (s *Store) DeleteTask(ctx context.Context, id int64) (err error) {
	const op = "delete_task"
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	db, err := s.acquire(ctx, op)
	if err != nil {
		return err
	}
	defer release(db)

	res, err := db.ExecContext(ctx, "DELETE FROM "+schema.TableTasks+" WHERE "+schema.TaskID+" = ?", id)
	return affectedOne(op, res, err)
}

// GetTaskByID returns task id, or ErrNotFound when it does not exist.
func (s *Store) GetTaskByID(ctx context.Context, id int64) (task models.Task, err error) {
	const op = "get_task"
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	db, err := s.acquire(ctx, op)
	if err != nil {
		return models.Task{}, err
	}
	defer release(db)

	rows, err := db.QueryContext(ctx, selectTasks+" WHERE "+schema.TaskID+" = ?", id)
	if err != nil {
		return models.Task{}, classify(op, err)
	}
	defer rows.Close()

	tasks, err := mapTasks(rows)
	if err != nil {
		return models.Task{}, classify(op, err)
	}
	if len(tasks) == 0 {
		return models.Task{}, &Error{Op: op, Kind: KindNotFound}
	}
	return tasks[0], nil
}

// GetAllTasks returns every task, newest id first. An empty store yields an
// empty slice.
func (s *Store) GetAllTasks(ctx context.Context) (tasks []models.Task, err error) {
	const op = "list_tasks"
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	db, err := s.acquire(ctx, op)
	if err != nil {
		return nil, err
	}
	defer release(db)

	rows, err := db.QueryContext(ctx, selectTasks+" ORDER BY "+schema.TaskID+" DESC")
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	tasks, err = mapTasks(rows)
	if err != nil {
		return nil, classify(op, err)
	}
	return tasks, nil
}

func mapTasks(rows *sql.Rows) ([]models.Task, error) {
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	tasks := make([]models.Task, 0, len(records))
	for _, rec := range records {
		task, err := models.TaskFromRecord(rec)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func affectedOne(op string, res sql.Result, err error) error {
	if err != nil {
		return classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return &Error{Op: op, Kind: KindNotFound}
	}
	return nil
}
