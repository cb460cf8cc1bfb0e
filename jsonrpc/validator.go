package jsonrpc

import (
	"gopkg.in/go-playground/validator.v9"
)

// Validator validates request structs with go-playground struct tags.
type Validator struct {
	validator *validator.Validate
}

// NewValidator returns a validator with the JSON-RPC specific rules registered.
func NewValidator() *Validator {
	v := &Validator{
		validator: validator.New(),
	}
	v.RegisterValidation("version", isJSONRPCVersion)
	return v
}

// Validate validates a struct.
func (v *Validator) Validate(i interface{}) error {
	return v.validator.Struct(i)
}

// RegisterValidation registers a custom tag.
func (v *Validator) RegisterValidation(tag string, fn validator.Func) {
	_ = v.validator.RegisterValidation(tag, fn)
}

func isJSONRPCVersion(fl validator.FieldLevel) bool {
	return fl.Field().String() == Version
}
