package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"stocksync/internal/logger"
	"stocksync/internal/models"
	"stocksync/internal/mutation"
)

// ErrInvalidJob marks a queued job whose envelope can never be applied.
var ErrInvalidJob = errors.New("invalid mutation job")

type Validator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func New(logger *logger.Logger) *Validator {
	return &Validator{
		validate: validator.New(),
		logger:   logger,
	}
}

// ValidateJob checks the job envelope. The payload itself is decoded and
// checked when the job is applied.
func (v *Validator) ValidateJob(job mutation.Job) error {
	err := v.validate.Struct(job)
	if err == nil {
		if job.Operation == mutation.OpArchive && job.Entity != models.EntityProducts {
			return fmt.Errorf("%w: %s jobs cannot archive", ErrInvalidJob, job.Entity)
		}
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	msgs := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		msgs[i] = fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
	v.logger.Debug("Job %s rejected: %s", job.ID, strings.Join(msgs, ", "))
	return fmt.Errorf("%w: %s", ErrInvalidJob, strings.Join(msgs, ", "))
}
