// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
// In a well-structured Go web app, code is organised into three layers:
//
//   Handler (HTTP layer)    → parses requests, writes responses
//   Service (Business layer) → validates, enforces rules, orchestrates
//   Repository (Data layer) → reads/writes to the database
//
// WHY A SEPARATE SERVICE LAYER?
// Without a service layer, handlers do everything: parse HTTP, validate data,
// call the database, format responses. That creates several problems:
//
//   1. TESTING: To test business logic, you'd need to craft HTTP requests.
//      With a service layer, you test business logic with plain Go function calls.
//
//   2. REUSE: What if you need the same logic in a CLI tool or a background job?
//      Handlers are tied to HTTP. Services are not.
//
//   3. SEPARATION: Handlers should only know about HTTP (status codes, headers,
//      JSON). Services should only know about business rules (validation,
//      permissions, cache policy). Neither should know about SQL.
//
// THE DEPENDENCY CHAIN:
//   main.go creates:  DB → Repositories → Cache → Services → Handlers
//   At runtime:       Handler calls Service calls Repository calls DB
//
// AUTHORIZATION LIVES HERE:
// Every mutating method takes the caller's model.Principal and checks the
// role itself. The HTTP middleware only authenticates (who are you?); the
// service authorizes (may you do this?). Putting the check here means the
// rules hold for every transport, not just the routes that remembered to
// add a middleware.
package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/nafis/library-server/internal/apperror"
)

// validate is the shared validator instance. validator.New is expensive
// (it reflects over struct tags and caches the results), so the package
// keeps a single instance rather than building one per call.
var validate = validator.New(validator.WithRequiredStructEnabled())

// checkStruct runs struct-tag validation on an input payload and converts
// the first failure into an apperror.ValidationFailed, so handlers map it
// to 400 like every other validation error.
func checkStruct(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	// validator returns ValidationErrors, a slice of per-field failures.
	// We report only the first one — forms fix one field at a time anyway.
	if ves, ok := err.(validator.ValidationErrors); ok && len(ves) > 0 {
		ve := ves[0]
		return apperror.ValidationFailed(ve.Field(), validationMessage(ve))
	}
	return apperror.ValidationFailed("", err.Error())
}

// validationMessage renders a human-readable message for a single failed
// validation tag. The default messages from the library leak Go type names,
// which read poorly in API responses.
func validationMessage(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return ve.Field() + " is required"
	case "email":
		return ve.Field() + " must be a valid email address"
	case "min":
		return ve.Field() + " must be at least " + ve.Param()
	case "max":
		return ve.Field() + " must be at most " + ve.Param()
	case "oneof":
		return ve.Field() + " must be one of: " + ve.Param()
	default:
		return ve.Field() + " is invalid"
	}
}
