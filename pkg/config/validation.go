package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their mapstructure key.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks cfg against its struct tags and the rules that span
// sections. Error messages name fields by their config key path.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, describe(fe))
		}
		return errors.New(strings.Join(msgs, "; "))
	}

	if cfg.Storage.Type == "s3" && cfg.Storage.S3.Bucket == "" {
		return errors.New("storage.s3.bucket: required when storage.type is s3")
	}
	if strings.HasPrefix(cfg.Storage.S3.KeyPrefix, "/") {
		return errors.New("storage.s3.key_prefix: must not start with /")
	}
	if !strings.Contains(cfg.Auth.HomePattern, "{user}") {
		return errors.New("auth.home_pattern: must contain {user}")
	}
	return nil
}

// describe renders one failed tag, e.g.
// "logging.level: failed 'oneof' (DEBUG INFO WARN ERROR ...)".
func describe(fe validator.FieldError) string {
	// Namespace is "Config.logging.level"; drop the root.
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s: failed '%s' (%s)", ns, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s: failed '%s'", ns, fe.Tag())
}
