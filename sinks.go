package pgadmin

import (
	"context"

	"github.com/rs/zerolog"
)

// ErrorSink receives failures the engine reports. HandleError produces the
// terminating error for the caller; LogError only records.
type ErrorSink interface {
	HandleError(message string, status int) error
	LogError(message string, status int)
}

// AuditLogSink receives one entry per data change. Log must not block for
// long and never fails the operation.
type AuditLogSink interface {
	Log(ctx context.Context, event, message string)
}

// PaginationConfig supplies the page size for FetchPage and CountPage.
type PaginationConfig struct {
	ItemsPerPage int `json:"items_per_page"`
}

// StatusError is the error produced by the default ErrorSink.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string { return e.Message }

type logErrorSink struct {
	logger zerolog.Logger
}

// NewLogErrorSink returns an ErrorSink that writes to logger.
func NewLogErrorSink(logger zerolog.Logger) ErrorSink {
	return &logErrorSink{logger: logger}
}

func (s *logErrorSink) HandleError(message string, status int) error {
	s.logger.Warn().Int("status", status).Msg(message)
	return &StatusError{Status: status, Message: message}
}

func (s *logErrorSink) LogError(message string, status int) {
	s.logger.Error().Int("status", status).Msg(message)
}
