package api

import (
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	tagPattern = regexp.MustCompile(`^#?[\p{L}\p{N}_-]{1,32}$`)
	registerOnce sync.Once
)

// validTag accepts a single hashtag, with or without the leading '#'.
func validTag(fl validator.FieldLevel) bool {
	return tagPattern.MatchString(fl.Field().String())
}

// RegisterValidators installs the custom binding rules on gin's validator.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		err = v.RegisterValidation("tag", validTag)
	})
	return err
}
