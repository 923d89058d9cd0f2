package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type languageRequest struct {
	Preferences map[string]string `validate:"dive,keys,uuid,endkeys,language_code"`
}

func TestLanguagePreferencesValidation(t *testing.T) {
	valid := languageRequest{Preferences: map[string]string{
		"0b8e4a5e-6a65-4a4e-9f1c-3e2a7c1f9d10": "ro",
		"3c6a1f3e-1d2b-4c55-8a9e-0f1e2d3c4b5a": "en-GB",
	}}
	assert.NoError(t, ValidateStruct(valid))

	badKey := languageRequest{Preferences: map[string]string{"item-1": "ro"}}
	errs := GetValidationErrors(ValidateStruct(badKey))
	if assert.Len(t, errs, 1) {
		assert.Equal(t, "uuid", errs[0].Tag)
	}

	badLang := languageRequest{Preferences: map[string]string{"0b8e4a5e-6a65-4a4e-9f1c-3e2a7c1f9d10": "romanian"}}
	errs = GetValidationErrors(ValidateStruct(badLang))
	if assert.Len(t, errs, 1) {
		assert.Equal(t, "language_code", errs[0].Tag)
	}
}

func TestEmptyPreferencesAreValid(t *testing.T) {
	assert.NoError(t, ValidateStruct(languageRequest{}))
}
