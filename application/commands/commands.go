package commands

import (
	"github.com/go-playground/validator/v10"

	pkgerrors "loom-backend/pkg/errors"
)

var validate = validator.New()

// Command is implemented by every state-changing request
type Command interface {
	Validate() error
}

func runValidation(cmd interface{}) error {
	if err := validate.Struct(cmd); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	return nil
}
