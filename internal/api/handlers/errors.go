package handlers

import (
	"net/http"

	"github.com/isdelr/taskdeck/internal/database"
	"github.com/rs/zerolog/log"
)

// writeStoreError maps a storage failure to an HTTP status.
func writeStoreError(w http.ResponseWriter, err error, msg string) {
	status := http.StatusInternalServerError
	switch database.KindOf(err) {
	case database.KindNotFound:
		status = http.StatusNotFound
	case database.KindConstraint:
		status = http.StatusConflict
	case database.KindConnection:
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
	} else {
		log.Warn().Err(err).Msg(msg)
	}
	http.Error(w, msg, status)
}
