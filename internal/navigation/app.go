package navigation

import (
	"context"
	"errors"
	"fmt"

	"github.com/isdelr/taskdeck/internal/auth"
	"github.com/isdelr/taskdeck/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrWrongScreen is returned when an event does not belong to the current screen.
var ErrWrongScreen = errors.New("event not available on current screen")

// Messages shown to the user.
const (
	MsgLoginFailed     = "Incorrect email or password"
	MsgRegisterFailed  = "Could not register user"
	MsgSessionExpired  = "Your session has expired, please sign in again"
	NoticeLoadFailed   = "Tasks could not be loaded"
	NoticeSaveFailed   = "The task could not be saved"
	NoticeDeleteFailed = "The task could not be deleted"
)

// TaskStore is the part of the local store the screens use.
type TaskStore interface {
	AddTask(ctx context.Context, name, startDate, endDate string, ownerID int64) (models.Task, error)
	UpdateTask(ctx context.Context, id int64, name, startDate, endDate string) error
	DeleteTask(ctx context.Context, id int64) error
	GetTaskByID(ctx context.Context, id int64) (models.Task, error)
	GetAllTasks(ctx context.Context) ([]models.Task, error)
}

// Options tunes task ownership.
type Options struct {
	// OwnerID owns every task created from the add screen.
	OwnerID int64
	// OwnerFromSession uses the signed-in local user instead of OwnerID
	// when there is one.
	OwnerFromSession bool
}

// TaskForm holds the fields of the add/edit screen.
type TaskForm struct {
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// State is a snapshot of what the presentation layer renders.
type State struct {
	Screen  Screen        `json:"screen"`
	History []Screen      `json:"history"`
	Error   string        `json:"error,omitempty"`  // inline error of the auth screens
	Notice  string        `json:"notice,omitempty"` // non-blocking failure notice
	Tasks   []models.Task `json:"tasks"`
	Form    TaskForm      `json:"form"`
	Session *auth.Session `json:"session,omitempty"`
}

// App drives one presentation session. It is not safe for concurrent use.
type App struct {
	store TaskStore
	auth  auth.Authenticator
	opts  Options
	stack *Stack

	session *auth.Session
	errMsg  string
	notice  string
	tasks   []models.Task
	form    TaskForm
}

// NewApp creates an App positioned on the login screen. Call Start before
// sending events.
func NewApp(store TaskStore, authn auth.Authenticator, opts Options) *App {
	if opts.OwnerID == 0 {
		opts.OwnerID = 1
	}
	return &App{
		store: store,
		auth:  authn,
		opts:  opts,
		stack: NewStack(LoginScreen),
	}
}

// Start runs the entry effect of the initial screen.
func (a *App) Start(ctx context.Context) {
	a.enter(ctx)
}

// Current returns the screen on top of the stack.
func (a *App) Current() Screen {
	return a.stack.Current()
}

// State returns a snapshot of the session.
func (a *App) State() State {
	st := State{
		Screen:  a.stack.Current(),
		History: a.stack.Entries(),
		Error:   a.errMsg,
		Notice:  a.notice,
		Tasks:   append([]models.Task{}, a.tasks...),
		Form:    a.form,
	}
	if a.session != nil {
		s := *a.session
		st.Session = &s
	}
	return st
}

// SubmitLogin signs in. Success replaces the login screen with the task list.
func (a *App) SubmitLogin(ctx context.Context, email, password string) error {
	if err := a.begin(RouteLogin); err != nil {
		return err
	}

	session, err := a.auth.Login(ctx, email, password)
	if err != nil {
		log.Info().Err(err).Str("email", email).Msg("Login rejected")
		a.errMsg = MsgLoginFailed
		return nil
	}

	a.session = &session
	a.stack.Replace(TaskListScreen, RouteLogin)
	a.enter(ctx)
	return nil
}

// OpenRegister moves from the login screen to the register screen.
func (a *App) OpenRegister(ctx context.Context) error {
	if err := a.begin(RouteLogin); err != nil {
		return err
	}
	a.stack.Push(RegisterScreen)
	a.enter(ctx)
	return nil
}

// SubmitRegister creates an account. Success replaces the register screen
// with the login screen.
func (a *App) SubmitRegister(ctx context.Context, email, password string) error {
	if err := a.begin(RouteRegister); err != nil {
		return err
	}

	if err := a.auth.Register(ctx, email, password); err != nil {
		log.Info().Err(err).Str("email", email).Msg("Registration rejected")
		a.errMsg = MsgRegisterFailed
		return nil
	}

	a.stack.Replace(LoginScreen, RouteRegister)
	a.enter(ctx)
	return nil
}

// CreateTask opens the add/edit screen in create mode.
func (a *App) CreateTask(ctx context.Context) error {
	if err := a.begin(RouteTaskList); err != nil {
		return err
	}
	a.stack.Push(AddOrEditTaskScreen(NewTaskID))
	a.enter(ctx)
	return nil
}

// ModifyTask opens the add/edit screen for task id.
func (a *App) ModifyTask(ctx context.Context, id int64) error {
	if err := a.begin(RouteTaskList); err != nil {
		return err
	}
	a.stack.Push(AddOrEditTaskScreen(id))
	a.enter(ctx)
	return nil
}

// DeleteTask deletes task id and drops it from the displayed list whether or
// not the store found it.
func (a *App) DeleteTask(ctx context.Context, id int64) error {
	if err := a.begin(RouteTaskList); err != nil {
		return err
	}

	if err := a.store.DeleteTask(ctx, id); err != nil {
		log.Warn().Err(err).Int64("task_id", id).Msg("Failed to delete task")
		a.notice = NoticeDeleteFailed
	}

	kept := a.tasks[:0]
	for _, t := range a.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	a.tasks = kept
	return nil
}

// SubmitTask saves the add/edit form and returns to the previous screen
// whether or not the save succeeded.
func (a *App) SubmitTask(ctx context.Context, name, startDate, endDate string) error {
	if err := a.begin(RouteAddOrEditTask); err != nil {
		return err
	}

	cur := a.stack.Current()

	var err error
	if cur.IsCreate() {
		_, err = a.store.AddTask(ctx, name, startDate, endDate, a.ownerID())
	} else {
		err = a.store.UpdateTask(ctx, cur.TaskID, name, startDate, endDate)
	}
	if err != nil {
		log.Warn().Err(err).Str("screen", cur.String()).Msg("Failed to save task")
		a.notice = NoticeSaveFailed
	}

	a.form = TaskForm{}
	a.back(ctx)
	return nil
}

// Logout signs out from the task list and leaves only the login screen on
// the stack.
func (a *App) Logout(ctx context.Context) error {
	if err := a.begin(RouteTaskList); err != nil {
		return err
	}
	if err := a.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("Sign-out not confirmed")
	}
	return nil
}

// Close ends the signed-in session from any screen and resets the stack to
// the login screen. The session is dropped even when the authenticator
// reports an error.
func (a *App) Close(ctx context.Context) error {
	var err error
	if a.session != nil {
		err = a.auth.Logout(ctx)
	}
	a.session = nil
	a.tasks = nil
	a.form = TaskForm{}
	a.stack.Reset(LoginScreen)
	a.enter(ctx)
	return err
}

// Back pops the current screen and re-enters the one below. At the root it
// reports false and changes nothing.
func (a *App) Back(ctx context.Context) bool {
	a.notice = ""
	return a.back(ctx)
}

// Refresh re-runs the entry effect of the current screen. A signed-in
// session that is no longer valid is closed and the login screen shows
// MsgSessionExpired.
func (a *App) Refresh(ctx context.Context) {
	a.notice = ""
	if a.session != nil && !a.auth.SessionValid() {
		log.Info().Str("email", a.session.Email).Msg("Session expired")
		a.Close(ctx)
		a.errMsg = MsgSessionExpired
		return
	}
	a.enter(ctx)
}

func (a *App) back(ctx context.Context) bool {
	if !a.stack.Pop() {
		return false
	}
	a.enter(ctx)
	return true
}

func (a *App) begin(route Route) error {
	cur := a.stack.Current()
	if cur.Route != route {
		return fmt.Errorf("%w: on %s, want %s", ErrWrongScreen, cur, route)
	}
	a.notice = ""
	return nil
}

func (a *App) ownerID() int64 {
	if a.opts.OwnerFromSession && a.session != nil && a.session.LocalID != 0 {
		return a.session.LocalID
	}
	return a.opts.OwnerID
}

// enter runs the entry effect of the current screen.
func (a *App) enter(ctx context.Context) {
	cur := a.stack.Current()
	switch cur.Route {
	case RouteLogin, RouteRegister:
		a.errMsg = ""

	case RouteTaskList:
		a.tasks = nil
		tasks, err := a.store.GetAllTasks(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load tasks")
			a.notice = NoticeLoadFailed
			return
		}
		a.tasks = tasks

	case RouteAddOrEditTask:
		a.form = TaskForm{}
		if cur.IsCreate() {
			return
		}
		task, err := a.store.GetTaskByID(ctx, cur.TaskID)
		if err != nil {
			log.Debug().Err(err).Int64("task_id", cur.TaskID).Msg("Task to edit not loaded")
			return
		}
		a.form = TaskForm{Name: task.Name, StartDate: task.StartDate, EndDate: task.EndDate}
	}
}
