package entity

import (
	"github.com/forbiddencoding/ruddit/common/errs"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate rejects posts that cannot be stored, such as a post without an identifier.
func (p *Post) Validate() error {
	if p == nil {
		return errs.Errorf(errs.KindInvalidArgument, "entity.Post", "nil post")
	}
	if err := validate.Struct(p); err != nil {
		return errs.Errorf(errs.KindInvalidArgument, "entity.Post", "post %q: %w", p.ID, err)
	}
	return nil
}
