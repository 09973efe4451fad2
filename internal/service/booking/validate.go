package booking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Domenick1991/flightdesk/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validateStruct returns the first failing field as a domain.ValidationError.
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &domain.ValidationError{Field: fieldPath(fe), Reason: message(fe)}
	}
	return &domain.ValidationError{Reason: err.Error()}
}

// fieldPath drops the root struct name: "SavePassengersInput.Passengers[0].FirstName" → "Passengers[0].FirstName".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "invalid email format"
	case "min":
		return fmt.Sprintf("minimum is %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		return fmt.Sprintf("must be a date in %s format", fe.Param())
	default:
		return "is invalid"
	}
}

// checkPassengerMix verifies the manifest matches the counts the fare was priced for.
func checkPassengerMix(passengers []domain.Passenger, want domain.PassengerCounts) error {
	var got domain.PassengerCounts
	for _, p := range passengers {
		switch p.Type {
		case domain.PassengerAdult:
			got.Adults++
		case domain.PassengerChild:
			got.Children++
		case domain.PassengerInfant:
			got.Infants++
		}
	}
	if got != want {
		return &domain.ValidationError{
			Field:  "passengers",
			Reason: fmt.Sprintf("expected %d adults, %d children, %d infants", want.Adults, want.Children, want.Infants),
		}
	}
	return nil
}
