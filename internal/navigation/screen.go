// Package navigation is the screen state machine: a back stack of named
// screens and the per-session controller that runs store operations when
// screens are entered or submitted.
package navigation

import (
	"fmt"
	"strconv"
	"strings"
)

// Route names a screen.
type Route string

const (
	RouteLogin         Route = "loginScreen"
	RouteRegister      Route = "registerScreen"
	RouteTaskList      Route = "taskListScreen"
	RouteAddOrEditTask Route = "addTaskScreen"
)

// NewTaskID is the task id that puts the add/edit screen in create mode.
const NewTaskID int64 = -1

// Screen is one entry of the back stack. It encodes as its route string,
// for example "addTaskScreen/7".
type Screen struct {
	Route  Route
	TaskID int64 // only meaningful for RouteAddOrEditTask
}

var (
	LoginScreen    = Screen{Route: RouteLogin}
	RegisterScreen = Screen{Route: RouteRegister}
	TaskListScreen = Screen{Route: RouteTaskList}
)

// AddOrEditTaskScreen returns the add/edit screen for taskID.
func AddOrEditTaskScreen(taskID int64) Screen {
	return Screen{Route: RouteAddOrEditTask, TaskID: taskID}
}

// IsCreate reports whether an add/edit screen is in create mode.
func (s Screen) IsCreate() bool {
	return s.Route == RouteAddOrEditTask && s.TaskID == NewTaskID
}

func (s Screen) String() string {
	if s.Route == RouteAddOrEditTask {
		return string(s.Route) + "/" + strconv.FormatInt(s.TaskID, 10)
	}
	return string(s.Route)
}

func (s Screen) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Screen) UnmarshalText(text []byte) error {
	parsed, err := ParseScreen(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseScreen parses a route such as "taskListScreen" or "addTaskScreen/7".
// An add/edit route without an id is in create mode.
func ParseScreen(s string) (Screen, error) {
	route, arg, hasArg := strings.Cut(s, "/")
	switch Route(route) {
	case RouteLogin, RouteRegister, RouteTaskList:
		if hasArg {
			return Screen{}, fmt.Errorf("route %q takes no argument", route)
		}
		return Screen{Route: Route(route)}, nil
	case RouteAddOrEditTask:
		if !hasArg || arg == "" {
			return AddOrEditTaskScreen(NewTaskID), nil
		}
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return Screen{}, fmt.Errorf("invalid task id %q: %w", arg, err)
		}
		return AddOrEditTaskScreen(id), nil
	default:
		return Screen{}, fmt.Errorf("unknown route %q", route)
	}
}
