// Package validation checks identifiers taken from request paths before they
// reach the container engine or the storage gateway.
package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	apierrors "github.com/HarryKodden/SeaWeedFS-HA-Demo/internal/errors"
)

const (
	MaxContainerNameLength = 128
	MaxObjectKeyBytes      = 1024
)

var (
	containerNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)
	bucketNamePattern    = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("containername", func(fl validator.FieldLevel) bool {
		return containerNamePattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("bucketname", func(fl validator.FieldLevel) bool {
		return bucketNamePattern.MatchString(fl.Field().String())
	})
}

type containerRef struct {
	Name string `validate:"required,max=128,containername"`
}

type bucketRef struct {
	Name string `validate:"required,bucketname"`
}

type objectRef struct {
	Key string `validate:"required,max=1024"`
}

// ContainerName checks a node or container name.
func ContainerName(name string) error {
	return check(containerRef{Name: name}, "container name", name)
}

// BucketName checks an S3 bucket name.
func BucketName(name string) error {
	return check(bucketRef{Name: name}, "bucket name", name)
}

// ObjectKey checks an S3 object key. The max tag counts runes, so the byte
// limit is enforced separately.
func ObjectKey(key string) error {
	if len(key) > MaxObjectKeyBytes {
		return apierrors.InvalidInput(fmt.Sprintf("object key exceeds %d bytes", MaxObjectKeyBytes), nil)
	}
	return check(objectRef{Key: key}, "object key", key)
}

func check(ref any, what, value string) error {
	err := validate.Struct(ref)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Tag() {
		case "required":
			return apierrors.InvalidInput(fmt.Sprintf("%s is required", what), err)
		case "max":
			return apierrors.InvalidInput(fmt.Sprintf("%s is too long", what), err)
		}
	}
	return apierrors.InvalidInput(fmt.Sprintf("invalid %s '%s'", what, value), err)
}
