package automation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMeta() *Meta {
	return &Meta{Source: "test", TS: "2026-01-01T00:00:00.000Z", RequestID: "r-1", Contract: "autofill@1"}
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		id      Identifier
		fields  map[string]any
		missing []string
	}{
		{"autofill without website", Autofill, map[string]any{}, []string{"website"}},
		{"autofill blank website", Autofill, map[string]any{"website": "  "}, []string{"website"}},
		{"angles complete", GenerateAngles, map[string]any{
			"company_id": 1, "brand": map[string]any{"name": "Acme"}, "platforms": []string{"blog"},
		}, nil},
		{"ideas missing angle", GenerateIdeas, map[string]any{
			"company_id": 1, "strategy_id": 2, "platforms": []string{"blog"},
		}, []string{"angle_number"}},
		{"content with empty platform slots", GenerateContent, map[string]any{
			"company_id": 1, "idea_id": 2, "platforms": make([]string, 8),
		}, []string{"platforms"}},
		{"avatar video without images", AvatarVideo, map[string]any{"script": "hi"}, []string{"image_count", "images"}},
		{"campaign empty product", ProductCampaign, map[string]any{"company_id": 3, "product": map[string]any{}}, []string{"product"}},
		{"ingest complete", RealEstateIngest, map[string]any{"url": "https://x.test"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateAs(tt.id, &Payload{Identifier: tt.id, Operation: "run", Fields: tt.fields})
			assert.Len(t, res.Errors, len(tt.missing))
			assert.Equal(t, len(tt.missing) == 0, res.OK)
			for i, field := range tt.missing {
				assert.Equal(t, fmt.Sprintf("%s: missing required field %q", tt.id, field), res.Errors[i])
			}
		})
	}
}

func TestValidate_AutofillWithoutWebsiteMentionsField(t *testing.T) {
	res := Validate(&Payload{Identifier: Autofill, Meta: validMeta(), Fields: map[string]any{"company_id": 4}})
	require.False(t, res.OK)
	assert.True(t, strings.Contains(res.ErrorText(), "website"))
}

func TestValidate_RepairsMetaWithWarnings(t *testing.T) {
	in := &Payload{Identifier: Autofill, Fields: map[string]any{"website": "https://acme.test"}}
	res := Validate(in)

	assert.True(t, res.OK)
	require.NotNil(t, res.Normalized.Meta)
	assert.NotEmpty(t, res.Normalized.Meta.TS)
	assert.Equal(t, DefaultSource, res.Normalized.Meta.Source)
	assert.NotEmpty(t, res.Normalized.Meta.RequestID)
	assert.Equal(t, "autofill@1", res.Normalized.Meta.Contract)

	codes := map[WarningCode]int{}
	for _, w := range res.Warnings {
		codes[w.Code]++
	}
	assert.Equal(t, 1, codes[WarnMetaMissing])
	assert.Equal(t, 3, codes[WarnMetaInjected])

	assert.Nil(t, in.Meta, "input must not be modified")
}

func TestValidate_ContractMismatchIsWarning(t *testing.T) {
	m := validMeta()
	m.Contract = "autofill@0"
	res := Validate(&Payload{Identifier: Autofill, Meta: m, Fields: map[string]any{"website": "w"}})
	assert.True(t, res.OK)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnContractMismatch, res.Warnings[0].Code)
	assert.Equal(t, "autofill@0", m.Contract)
}

func TestValidate_IdentifierMismatch(t *testing.T) {
	res := ValidateAs(Autofill, &Payload{Identifier: GenerateIdeas, Meta: validMeta(), Fields: map[string]any{"website": "w"}})
	assert.True(t, res.OK)
	assert.Equal(t, Autofill, res.Normalized.Identifier)
	require.NotEmpty(t, res.Warnings)
	assert.Equal(t, WarnIdentifierMismatch, res.Warnings[0].Code)
}

func TestValidate_RenormalizesPlatforms(t *testing.T) {
	in := &Payload{
		Identifier: GenerateContent,
		Meta:       &Meta{Source: "s", TS: "t", RequestID: "r", Contract: "generate-content@2"},
		Fields: map[string]any{
			"company_id": 1,
			"idea_id":    2,
			"platforms":  []any{"Blog", "twitter", "myspace"},
		},
	}
	res := Validate(in)
	require.True(t, res.OK)
	assert.Equal(t, []string{"twitter", "", "", "", "", "", "", "blog"}, res.Normalized.Fields["platforms"])
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnPlatformsRenormalized, res.Warnings[0].Code)
	assert.Len(t, in.Fields["platforms"], 3)
}

func TestValidate_UserIDConflict(t *testing.T) {
	uid := "u-1"
	m := validMeta()
	m.UserID = &uid
	res := Validate(&Payload{Identifier: Autofill, Meta: m, Fields: map[string]any{"website": "w", "user_id": "u-2"}})
	assert.False(t, res.OK)
	assert.Contains(t, res.ErrorText(), "conflicts")

	res = Validate(&Payload{Identifier: Autofill, Meta: m, Fields: map[string]any{"website": "w", "user_id": "u-1"}})
	assert.True(t, res.OK)
}

func TestValidate_Strict(t *testing.T) {
	res := Validate(&Payload{Identifier: Autofill, Fields: map[string]any{"website": "w"}}).Strict()
	assert.False(t, res.OK)
	assert.Empty(t, res.Warnings)
	assert.NotEmpty(t, res.Errors)
}

func TestValidate_NeverPanics(t *testing.T) {
	shapes := []*Payload{
		nil,
		{},
		{Identifier: "unknown"},
		{Identifier: GenerateAngles, Fields: map[string]any{"platforms": 42}},
		{Identifier: GenerateAngles, Fields: map[string]any{"platforms": nil, "brand": []int{}}},
		{Identifier: AvatarVideo, Fields: map[string]any{"images": []any{nil, 3}, "image_count": 0}},
		{Identifier: GenerateIdeas, Meta: &Meta{}, Fields: map[string]any{"platforms": map[string]any{"a": 1}}},
		{Identifier: ProductCampaign, Fields: map[string]any{"product": (*Product)(nil), "user_id": nil}},
		{Identifier: Autofill, Fields: map[string]any{"platforms": []any{[]any{"x"}, map[string]any{}}}},
	}
	for _, id := range append(Identifiers(), "", "bogus") {
		for i, p := range shapes {
			t.Run(fmt.Sprintf("%s/%d", id, i), func(t *testing.T) {
				var res CheckResult
				require.NotPanics(t, func() { res = ValidateAs(id, p) })
				assert.Equal(t, len(res.Errors) == 0, res.OK)
				assert.NotNil(t, res.Normalized)
			})
		}
	}
}
