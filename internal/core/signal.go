package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var signalValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateSignal rejects readings outside the sensor ranges
// (pH 0-14, gas 0-500 ppm, storage 0-168 h, temperature -20-30 °C).
// Scoring itself never validates; this is applied at the input boundary.
func ValidateSignal(s SignalProcessingData) error {
	err := signalValidator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s must be %s %s", jsonName(fe.Field()), boundWord(fe.Tag()), fe.Param()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidSignal, strings.Join(msgs, "; "))
}

func jsonName(field string) string {
	switch field {
	case "PH":
		return "ph"
	case "GasLevel":
		return "gasLevel"
	case "StorageTime":
		return "storageTime"
	case "Temperature":
		return "temperature"
	}
	return field
}

func boundWord(tag string) string {
	switch tag {
	case "gte":
		return "at least"
	case "lte":
		return "at most"
	}
	return tag
}
