package forms

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapreel/backend/internal/models"
)

type fakeAuth struct {
	reject  bool
	signIns int
	signUps int
	got     []string
}

func (f *fakeAuth) SignIn(_ context.Context, email, password string) *models.Account {
	f.signIns++
	f.got = []string{email, password}
	if f.reject {
		return nil
	}
	return &models.Account{UID: "u1", Email: email}
}

func (f *fakeAuth) SignUp(_ context.Context, email, password, name string) *models.Account {
	f.signUps++
	f.got = []string{email, password, name}
	if f.reject {
		return nil
	}
	return &models.Account{UID: "u1", Email: email, DisplayName: name}
}

func TestSignUpValidate(t *testing.T) {
	tests := []struct {
		name string
		form SignUp
		want FieldErrors
	}{
		{"valid", SignUp{Name: "Al", Email: "al@example.com", Password: "sixsix"}, nil},
		{"empty", SignUp{}, FieldErrors{
			"name":     "name is a required field",
			"email":    "email is a required field",
			"password": "password is a required field",
		}},
		{"short name", SignUp{Name: " A ", Email: "a@example.com", Password: "sixsix"}, FieldErrors{
			"name": "name must be at least 2 characters",
		}},
		{"bad email", SignUp{Name: "Maya", Email: "maya-at-example", Password: "sixsix"}, FieldErrors{
			"email": "email must be a valid email",
		}},
		{"short password", SignUp{Name: "Maya", Email: "maya@example.com", Password: "five5"}, FieldErrors{
			"password": "password must be at least 6 characters",
		}},
		{"padded email", SignUp{Name: "Maya", Email: "  maya@example.com ", Password: "sixsix"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.form.Validate())
		})
	}
}

func TestSignInValidate(t *testing.T) {
	assert.Nil(t, SignIn{Email: "maya@example.com", Password: "sixsix"}.Validate())
	assert.Equal(t, FieldErrors{
		"email":    "email must be a valid email",
		"password": "password must be at least 6 characters",
	}, SignIn{Email: "maya", Password: "12345"}.Validate())
}

func TestInvalidFormIsNotSubmitted(t *testing.T) {
	auth := &fakeAuth{}

	_, err := SignIn{Email: "maya", Password: "sixsix"}.Submit(context.Background(), auth)
	var fields FieldErrors
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields, "email")
	assert.Equal(t, "email must be a valid email", err.Error())

	_, err = SignUp{Email: "maya@example.com", Password: "sixsix"}.Submit(context.Background(), auth)
	require.ErrorAs(t, err, &fields)
	assert.Equal(t, FieldErrors{"name": "name is a required field"}, fields)

	assert.Zero(t, auth.signIns)
	assert.Zero(t, auth.signUps)
}

func TestSubmitPassesTrimmedFields(t *testing.T) {
	auth := &fakeAuth{}

	account, err := SignUp{Name: " Maya ", Email: " maya@example.com", Password: " pass word "}.Submit(context.Background(), auth)
	require.NoError(t, err)
	assert.Equal(t, "Maya", account.DisplayName)
	assert.Equal(t, []string{"maya@example.com", " pass word ", "Maya"}, auth.got, "passwords are sent as typed")

	account, err = SignIn{Email: "maya@example.com ", Password: "sixsix"}.Submit(context.Background(), auth)
	require.NoError(t, err)
	assert.Equal(t, "maya@example.com", account.Email)
}

func TestRejectedSubmit(t *testing.T) {
	auth := &fakeAuth{reject: true}

	_, err := SignIn{Email: "maya@example.com", Password: "sixsix"}.Submit(context.Background(), auth)
	assert.ErrorIs(t, err, ErrRejected)
	_, err = SignUp{Name: "Maya", Email: "maya@example.com", Password: "sixsix"}.Submit(context.Background(), auth)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, 1, auth.signIns)
	assert.Equal(t, 1, auth.signUps)
}

func TestFirstTimeDefaultsToTrue(t *testing.T) {
	ctx := context.Background()
	ft := NewFirstTime(NewMemoryStore())
	assert.True(t, ft.IsFirstTime(ctx))

	require.NoError(t, ft.Set(ctx, false))
	assert.False(t, ft.IsFirstTime(ctx))

	require.NoError(t, ft.Set(ctx, true))
	assert.True(t, ft.IsFirstTime(ctx))
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk unavailable")
}
func (brokenStore) Set(context.Context, string, string) error { return errors.New("disk unavailable") }

func TestFirstTimeTreatsUnreadableStateAsFirstTime(t *testing.T) {
	ctx := context.Background()
	assert.True(t, NewFirstTime(brokenStore{}).IsFirstTime(ctx))

	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, firstTimeKey, "maybe"))
	assert.True(t, NewFirstTime(store).IsFirstTime(ctx))
}

func TestFileStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "client.json")

	require.NoError(t, NewFirstTime(NewFileStore(path)).Set(ctx, false))
	assert.False(t, NewFirstTime(NewFileStore(path)).IsFirstTime(ctx), "a new process sees the stored value")

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, _, err := NewFileStore(path).Get(ctx, firstTimeKey)
	assert.Error(t, err)
	assert.True(t, NewFirstTime(NewFileStore(path)).IsFirstTime(ctx))
}
