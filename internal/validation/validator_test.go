package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangashelf/mangashelf/internal/errors"
	"github.com/mangashelf/mangashelf/internal/validation"
)

type providerMeta struct {
	ID      string `json:"id" validate:"required,provider_id"`
	Lang    string `json:"lang" validate:"required,lang"`
	BaseURL string `json:"base_url" validate:"omitempty,url"`
}

func TestValidator_Success(t *testing.T) {
	v := validation.New()
	assert.NoError(t, v.Validate(providerMeta{ID: "mangadex_pt_br", Lang: "pt_BR", BaseURL: "https://mangadex.org"}))
}

func TestValidator_FieldErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name  string
		meta  providerMeta
		field string
	}{
		{name: "missing id", meta: providerMeta{Lang: "en"}, field: "id"},
		{name: "uppercase id", meta: providerMeta{ID: "MangaDex", Lang: "en"}, field: "id"},
		{name: "bad lang", meta: providerMeta{ID: "webtoon", Lang: "english"}, field: "lang"},
		{name: "bad url", meta: providerMeta{ID: "webtoon", Lang: "en", BaseURL: "not a url"}, field: "base_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.meta)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrValidation)

			var de *errors.Error
			require.ErrorAs(t, err, &de)
			details, ok := de.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details, tt.field)
		})
	}
}

func TestValidator_Var(t *testing.T) {
	v := validation.New()
	assert.NoError(t, v.Var("15", "numeric"))
	assert.Error(t, v.Var("fifteen", "numeric"))
}
