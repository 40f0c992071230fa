package scraper

import (
	"errors"
	"fmt"

	"mspro-labs/catalog-scraper/internal/browser"
)

// ExtractionError reports a required element missing from a product card.
type ExtractionError struct {
	Field    string
	Selector string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction: %s element %q not found", e.Field, e.Selector)
}

// ParseError reports card text that could not be converted to its field type.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("parse %s %q", e.Field, e.Value)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// PaginationLimitError is returned when the load-more control is still
// clickable after the configured number of clicks.
type PaginationLimitError struct {
	Selector string
	Limit    int
}

func (e *PaginationLimitError) Error() string {
	return fmt.Sprintf("pagination: %q still clickable after %d clicks", e.Selector, e.Limit)
}

// TaskError ties a failure to the task and pipeline stage it happened in.
type TaskError struct {
	Task  string
	Stage string
	Err   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s: %s: %v", e.Task, e.Stage, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Pipeline stages used in TaskError.
const (
	StageOpen     = "open"
	StageNavigate = "navigate"
	StagePaginate = "paginate"
	StageExtract  = "extract"
	StageSink     = "sink"
	StageStore    = "store"
)

// ErrorType classifies err into a metrics label.
func ErrorType(err error) string {
	if err == nil {
		return "unknown"
	}
	var extraction *ExtractionError
	if errors.As(err, &extraction) {
		return "extraction"
	}
	var parse *ParseError
	if errors.As(err, &parse) {
		return "parse"
	}
	var limit *PaginationLimitError
	if errors.As(err, &limit) {
		return "pagination_limit"
	}
	if errors.Is(err, browser.ErrUnsupported) {
		return "unsupported_backend"
	}
	var task *TaskError
	if errors.As(err, &task) {
		switch task.Stage {
		case StageNavigate:
			return "navigation"
		case StageSink:
			return "sink"
		case StageStore:
			return "store"
		}
	}
	return "other"
}
