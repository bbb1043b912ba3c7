package validation

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type colour string

func (c colour) Valid() bool { return c == "red" || c == "blue" }

type swatch struct {
	Name    string   `json:"name" validate:"required,min=2,max=10"`
	Colour  colour   `json:"colour" validate:"required,enum"`
	Pincode string   `json:"pincode" validate:"omitempty,pincode"`
	Phone   string   `json:"phone" validate:"omitempty,inphone"`
	Tags    []tag    `json:"tags" validate:"dive"`
	Owner   string   `json:"-"`
	Rating  *int     `json:"rating" validate:"omitempty,min=1,max=5"`
	Emails  []string `json:"emails" validate:"dive,emailaddr"`
}

type tag struct {
	URL string `json:"url" validate:"required"`
}

func (swatch) ValidationMessages() Messages {
	return Messages{
		"name:required": "Name is required",
		"name:min":      "Name must be at least 2 characters",
		"pincode":       "Pincode must be 6 digits",
		"tags.url":      "Tag URL is required",
	}
}

type pair struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

func TestStructValid(t *testing.T) {
	s := swatch{Name: "Sky", Colour: "blue", Pincode: "110001", Phone: "9876543210", Emails: []string{"a@b.co"}}
	assert.NoError(t, Struct(s))
}

func TestStructReportsFieldMessages(t *testing.T) {
	s := swatch{Name: "x", Colour: "green", Pincode: "1100", Tags: []tag{{URL: "ok"}, {}}}
	err := Struct(&s)
	require.Error(t, err)

	var verrs Errors
	require.True(t, errors.As(err, &verrs))

	assert.Equal(t, "Name must be at least 2 characters", verrs.Message("name"))
	assert.Equal(t, "green is not a valid colour", verrs.Message("colour"))
	assert.Equal(t, "Pincode must be 6 digits", verrs.Message("pincode"))
	assert.Equal(t, "Tag URL is required", verrs.Message("tags[1].url"))
	assert.False(t, verrs.Has("phone"))
}

func TestStructDefaultMessages(t *testing.T) {
	bad := 9
	s := swatch{Name: "Sky", Colour: "red", Phone: "12345", Rating: &bad, Emails: []string{"nope"}}

	var verrs Errors
	require.True(t, errors.As(Struct(s), &verrs))

	assert.Equal(t, "phone failed the inphone check", verrs.Message("phone"))
	assert.Equal(t, "rating cannot exceed 5", verrs.Message("rating"))
	assert.True(t, verrs.Has("emails[0]"))
}

func TestRegisterStructRule(t *testing.T) {
	RegisterStructRule(func(sl validator.StructLevel) {
		p := sl.Current().Interface().(pair)
		if p.Low > p.High {
			sl.ReportError(p.Low, "low", "Low", "lte_high", "")
		}
	}, pair{})

	var verrs Errors
	require.True(t, errors.As(Struct(pair{Low: 5, High: 1}), &verrs))
	assert.Equal(t, "low failed the lte_high check", verrs.Message("low"))
	assert.NoError(t, Struct(pair{Low: 1, High: 5}))
}

func TestMerge(t *testing.T) {
	assert.NoError(t, Merge(nil, nil))

	err := Merge(Field("a", "bad a"), nil, Field("b", "bad b"))
	var verrs Errors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 2)
	assert.Contains(t, err.Error(), "a: bad a")

	other := errors.New("boom")
	assert.Equal(t, other, Merge(Field("a", "x"), other))
}
