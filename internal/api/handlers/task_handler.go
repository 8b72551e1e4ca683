package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/taskdeck/internal/navigation"
	ws "github.com/isdelr/taskdeck/internal/websocket"
)

// Publisher fans a message out to every live session.
type Publisher interface {
	Publish(message []byte)
}

// TaskHandler handles HTTP requests for tasks.
type TaskHandler struct {
	store        navigation.TaskStore
	events       Publisher
	defaultOwner int64
}

// NewTaskHandler creates a new TaskHandler. Tasks created without an owner
// belong to defaultOwner.
func NewTaskHandler(store navigation.TaskStore, events Publisher, defaultOwner int64) *TaskHandler {
	return &TaskHandler{store: store, events: events, defaultOwner: defaultOwner}
}

// TaskPayload is the body of create and update requests.
type TaskPayload struct {
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	OwnerID   *int64 `json:"ownerId,omitempty"`
}

// GetAll handles listing every task, newest first.
func (h *TaskHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.store.GetAllTasks(r.Context())
	if err != nil {
		writeStoreError(w, err, "Failed to retrieve tasks")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tasks)
}

// Get handles retrieving a single task.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	task, err := h.store.GetTaskByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "Task not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(task)
}

// Create handles adding a task.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload TaskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	owner := h.defaultOwner
	if payload.OwnerID != nil {
		owner = *payload.OwnerID
	}

	task, err := h.store.AddTask(r.Context(), payload.Name, payload.StartDate, payload.EndDate, owner)
	if err != nil {
		writeStoreError(w, err, "Failed to create task")
		return
	}
	h.events.Publish(ws.NewTasksChangedMessage())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(task)
}

// Update handles replacing the name and dates of a task. The owner is kept.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	var payload TaskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.UpdateTask(r.Context(), id, payload.Name, payload.StartDate, payload.EndDate); err != nil {
		writeStoreError(w, err, "Failed to update task")
		return
	}
	h.events.Publish(ws.NewTasksChangedMessage())

	task, err := h.store.GetTaskByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "Failed to reload task")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(task)
}

// Delete handles removing a task.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteTask(r.Context(), id); err != nil {
		writeStoreError(w, err, "Failed to delete task")
		return
	}
	h.events.Publish(ws.NewTasksChangedMessage())
	w.WriteHeader(http.StatusNoContent)
}

func taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid task id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
