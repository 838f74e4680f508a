package bizerror

import (
	"errors"
	"net/http"
	"strings"

	"draftflow/common"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid stage transition")
	ErrAlreadyExists     = errors.New("already exists")
	ErrEmptyActor        = errors.New("actor name is empty")
)

// ErrInvalidTemplate reports everything wrong with a submitted template step
// list, so a caller can fix the whole list in one round trip.
type ErrInvalidTemplate struct {
	Problems []string
}

func (e *ErrInvalidTemplate) Error() string {
	return "invalid template: " + strings.Join(e.Problems, "; ")
}

func (e *ErrInvalidTemplate) Respond() *common.BizErrorDetail {
	return &common.BizErrorDetail{
		Status: http.StatusBadRequest, Code: "workflow.invalid_template",
		Message: "invalid template", Data: e.Problems,
	}
}
