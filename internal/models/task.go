package models

import (
	"fmt"

	"github.com/isdelr/taskdeck/internal/schema"
)

// Task is a value copy of a stored task. Changing it does not touch the store
// until it is passed to an update.
type Task struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"startDate"` // free text, never parsed
	EndDate   string `json:"endDate"`
	OwnerID   *int64 `json:"ownerId,omitempty"`
}

// TaskFromRecord maps a row read by column name into a Task.
func TaskFromRecord(rec Record) (Task, error) {
	id, ok, err := rec.Int64(schema.TaskID)
	if err != nil {
		return Task{}, err
	}
	if !ok {
		return Task{}, fmt.Errorf("task record has no %s", schema.TaskID)
	}

	var task Task
	task.ID = id
	if task.Name, err = rec.String(schema.TaskName); err != nil {
		return Task{}, err
	}
	if task.StartDate, err = rec.String(schema.TaskStartDate); err != nil {
		return Task{}, err
	}
	if task.EndDate, err = rec.String(schema.TaskEndDate); err != nil {
		return Task{}, err
	}

	owner, ok, err := rec.Int64(schema.TaskUserID)
	if err != nil {
		return Task{}, err
	}
	if ok {
		task.OwnerID = &owner
	}
	return task, nil
}
