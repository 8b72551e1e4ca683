// Package schema holds the table and column names of the local task store
// together with the DDL that creates and drops them.
package schema

// Version is the schema version written to PRAGMA user_version.
const Version = 1

// Table names.
const (
	TableUsers = "Users"
	TableTasks = "Tasks"
)

// Users columns.
const (
	UserID       = "id"
	UserEmail    = "email"
	UserPassword = "password"
)

// Tasks columns.
const (
	TaskID        = "id"
	TaskName      = "name"
	TaskStartDate = "startDate"
	TaskEndDate   = "endDate"
	TaskUserID    = "userId"
)

const createUsersTable = `CREATE TABLE IF NOT EXISTS ` + TableUsers + ` (
	` + UserID + ` INTEGER PRIMARY KEY AUTOINCREMENT,
	` + UserEmail + ` TEXT UNIQUE,
	` + UserPassword + ` TEXT
)`

const createTasksTable = `CREATE TABLE IF NOT EXISTS ` + TableTasks + ` (
	` + TaskID + ` INTEGER PRIMARY KEY AUTOINCREMENT,
	` + TaskName + ` TEXT,
	` + TaskStartDate + ` TEXT,
	` + TaskEndDate + ` TEXT,
	` + TaskUserID + ` INTEGER,
	FOREIGN KEY (` + TaskUserID + `) REFERENCES ` + TableUsers + `(` + UserID + `)
)`

// CreateStatements returns the statements that create both tables, in order.
func CreateStatements() []string {
	return []string{createUsersTable, createTasksTable}
}

// DropStatements returns the statements that drop both tables.
func DropStatements() []string {
	return []string{
		"DROP TABLE IF EXISTS " + TableUsers,
		"DROP TABLE IF EXISTS " + TableTasks,
	}
}

// TaskColumns lists the columns read back when loading a task.
func TaskColumns() []string {
	return []string{TaskID, TaskName, TaskStartDate, TaskEndDate, TaskUserID}
}
