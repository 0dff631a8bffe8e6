package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator(t *testing.T) {
	v := New()

	type JobSettings struct {
		Policy   string `validate:"required,oneof=preserve_manual overwrite"`
		Timezone string `validate:"required,timezone"`
		Retries  int    `validate:"gte=1"`
	}

	// 1. Success
	assert.NoError(t, v.Validate(JobSettings{Policy: "overwrite", Timezone: "UTC", Retries: 3}))

	// 2. Failure
	err := v.Validate(JobSettings{Policy: "clobber", Timezone: "Mars/Olympus", Retries: 0})
	assert.Error(t, err)

	// 3. Translation
	msgs := TranslateValidationErrors(err)
	assert.Len(t, msgs, 3)

	errorMap := make(map[string]string)
	for _, m := range msgs {
		errorMap[m.Field] = m.Message
	}

	assert.Equal(t, "Value must be one of: preserve_manual overwrite", errorMap["Policy"])
	assert.Equal(t, "Invalid IANA time zone", errorMap["Timezone"])
	assert.Equal(t, "Value must be greater than or equal to 1", errorMap["Retries"])
}

func TestTranslateValidationErrors_IgnoresOtherErrors(t *testing.T) {
	assert.Empty(t, TranslateValidationErrors(errors.New("boom")))
	assert.Empty(t, TranslateValidationErrors(nil))
}
