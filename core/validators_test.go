package core

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMasterDataInput_validation(t *testing.T) {
	tests := []struct {
		name       string
		in         MasterDataInput
		wantFields map[string]string
	}{
		{
			name:       "empty",
			wantFields: map[string]string{"code": requiredText, "name": requiredText},
		},
		{
			name:       "lowercase code is upper-cased",
			in:         MasterDataInput{Code: " corp-01 ", Name: "Corporate"},
			wantFields: map[string]string{},
		},
		{
			name:       "code with spaces",
			in:         MasterDataInput{Code: "CO RP", Name: "Corporate"},
			wantFields: map[string]string{"code": codeText},
		},
		{
			name:       "code too long",
			in:         MasterDataInput{Code: "ABCDEFGHIJKLMNOPQRSTU", Name: "Corporate"},
			wantFields: map[string]string{"code": codeText},
		},
		{
			name:       "code starting with a dash",
			in:         MasterDataInput{Code: "-CORP", Name: "Corporate"},
			wantFields: map[string]string{"code": codeText},
		},
		{
			name:       "short name",
			in:         MasterDataInput{Code: "CORP", Name: "  Co "},
			wantFields: map[string]string{"name": "name must be at least 3 characters in length"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Clean()
			err := Validate.Struct(tt.in)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs))
			got := make(map[string]string)
			for _, fe := range verrs {
				got[fe.Field()] = fe.Translate(Translator)
			}
			assert.Equal(t, tt.wantFields, got)
		})
	}
}

func TestClockValidation(t *testing.T) {
	type slot struct {
		At string `json:"at" validate:"clock"`
	}
	for _, ok := range []string{"00:00", "09:30", "23:59"} {
		assert.NoError(t, Validate.Struct(slot{At: ok}), ok)
	}
	for _, bad := range []string{"", "9:30", "24:00", "12:60", "12h30"} {
		assert.Error(t, Validate.Struct(slot{At: bad}), bad)
	}
}

func TestNotBlankValidation(t *testing.T) {
	type named struct {
		Name string `json:"name" validate:"notblank"`
	}
	assert.NoError(t, Validate.Struct(named{Name: "x"}))
	assert.Error(t, Validate.Struct(named{Name: " \t "}))
}

func TestErrorKinds(t *testing.T) {
	wrapped := func(err error) error { return errors.Wrap(err, "context") }

	assert.True(t, IsNotFound(wrapped(ErrNotFound)))
	assert.True(t, IsUnauthorized(wrapped(ErrUnauthorized)))
	assert.True(t, IsForbidden(wrapped(ErrForbidden)))
	assert.True(t, IsConflict(wrapped(NewConflictError("code %s taken", "CORP"))))
	assert.True(t, IsShutdown(wrapped(NewShutdownError("db gone"))))
	assert.True(t, IsValidationError(wrapped(NewValidationError(nil, FieldError{Field: "code", Error: "bad"}))))
	assert.True(t, IsValidationError(Validate.Struct(MasterDataInput{})))

	assert.False(t, IsNotFound(ErrForbidden))
	assert.False(t, IsConflict(errors.New("boom")))

	assert.Equal(t, "code: bad", NewValidationError(nil, FieldError{Field: "code", Error: "bad"}).Error())
	assert.Equal(t, "validation failed", NewValidationError(nil).Error())
	assert.Equal(t, "code CORP taken", NewConflictError("code %s taken", "CORP").Error())
}

func TestCleaners(t *testing.T) {
	assert.Equal(t, "CORP_1", CleanCode("  corp_1\n"))
	assert.Equal(t, "Mixed Case", CleanString(" Mixed Case "))
	assert.Equal(t, "mixed case", CleanString(" Mixed Case ", true))

	desc := "  text  "
	upd := MasterDataUpdate{Code: "abc", Description: &desc}
	upd.Clean()
	assert.Equal(t, "ABC", upd.Code)
	assert.Equal(t, "text", *upd.Description)

	code, name, description, active := "OLD", "Old name", "old", true
	inactive := false
	upd.IsActive = &inactive
	upd.Apply(&code, &name, &description, &active)
	assert.Equal(t, "ABC", code)
	assert.Equal(t, "Old name", name)
	assert.Equal(t, "text", description)
	assert.False(t, active)
}
