package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/HammerMeetNail/matchpoint/internal/models"
)

const maxRequestBody = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names so messages match the request body.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
// It writes a 400 and returns false when the body is unusable.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}

	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must have at least %s items", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must have at most %s items", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "alphanum":
		return fmt.Sprintf("%s may only contain letters and digits", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

type ProfileRequest struct {
	Gender   string   `json:"gender" validate:"max=32"`
	Sports   []string `json:"sports" validate:"max=20,dive,max=40"`
	Skill    int      `json:"skill" validate:"gte=0,lte=10"`
	Location string   `json:"location" validate:"max=100"`
}

func (p ProfileRequest) toModel() models.Profile {
	return models.Profile{
		Gender:   p.Gender,
		Sports:   p.Sports,
		Skill:    p.Skill,
		Location: p.Location,
	}
}

type PreferencesRequest struct {
	GenderPref    string   `json:"gender_pref" validate:"max=32"`
	SportsPref    []string `json:"sports_pref" validate:"max=20,dive,max=40"`
	SkillMin      int      `json:"skill_min" validate:"gte=0,lte=10"`
	SkillMax      int      `json:"skill_max" validate:"gte=0,lte=10"`
	LocationRange int      `json:"location_range" validate:"gte=0,lte=1000"`
}

func (p PreferencesRequest) toModel() models.Preferences {
	return models.Preferences{
		GenderPref:    p.GenderPref,
		SportsPref:    p.SportsPref,
		SkillMin:      p.SkillMin,
		SkillMax:      p.SkillMax,
		LocationRange: p.LocationRange,
	}
}
