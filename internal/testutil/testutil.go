// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/matchpoint/internal/models"
)

// AssertStatusCode checks if the response has the expected status code.
func AssertStatusCode(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// RandomUsername returns a valid, probably unique username.
func RandomUsername() string {
	return "user" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// NewUser builds a user with a fresh id. An empty username gets a random one.
func NewUser(username string) *models.User {
	if username == "" {
		username = RandomUsername()
	}
	now := time.Now()
	return &models.User{
		ID:       uuid.New(),
		Username: username,
		Preferences: models.Preferences{
			GenderPref: models.GenderAny,
			SkillMax:   10,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
