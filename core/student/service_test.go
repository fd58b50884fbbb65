package student_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/aula/core"
	"github.com/trezcool/aula/core/student"
	inmemdb "github.com/trezcool/aula/storage/database/inmem"
	testutil "github.com/trezcool/aula/tests"
)

func newService(t *testing.T) (student.Service, student.Repository) {
	t.Helper()
	repo := inmemdb.NewStudentRepository(inmemdb.Open())
	return student.NewService(repo), repo
}

func newValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	student.InitValidators(validate, translator)
	return validate
}

func TestService_Authenticate(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	testutil.CreateStudent(t, repo, "Pin", "pin_kid", student.LoginPIN, student.Credentials{PIN: "1234"}, "", true)
	testutil.CreateStudent(t, repo, "Img", "img_kid", student.LoginImages, student.Credentials{Images: []string{"cat", "sun"}}, "", true)
	testutil.CreateStudent(t, repo, "Gone", "gone_kid", student.LoginPIN, student.Credentials{PIN: "1234"}, "", false)

	tests := []struct {
		name     string
		username string
		creds    student.Credentials
		wantErr  error
	}{
		{name: "pin", username: "pin_kid", creds: student.Credentials{PIN: "1234"}},
		{name: "username is case insensitive", username: " PIN_kid ", creds: student.Credentials{PIN: "1234"}},
		{name: "wrong pin", username: "pin_kid", creds: student.Credentials{PIN: "0000"}, wantErr: student.ErrAuthenticationFailed},
		{name: "images", username: "img_kid", creds: student.Credentials{Images: []string{"cat", "sun"}}},
		{name: "images reversed", username: "img_kid", creds: student.Credentials{Images: []string{"sun", "cat"}}, wantErr: student.ErrAuthenticationFailed},
		{name: "unknown username", username: "nobody", creds: student.Credentials{PIN: "1234"}, wantErr: student.ErrAuthenticationFailed},
		{name: "inactive", username: "gone_kid", creds: student.Credentials{PIN: "1234"}, wantErr: student.ErrInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := svc.Authenticate(ctx, tt.username, tt.creds)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.False(t, s.LastLogin.IsZero())
		})
	}
}

func TestService_CreateUpdateDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	s, err := svc.Create(ctx, student.NewStudent{
		Name:      "Amani",
		Username:  "amani",
		LoginType: student.LoginPIN,
		PIN:       "4321",
	})
	require.NoError(t, err)
	assert.True(t, s.IsActive)
	assert.NoError(t, s.CheckCredentials(student.Credentials{PIN: "4321"}))

	// switching login type replaces the secret
	s, err = svc.Update(ctx, s.ID, student.UpdateStudent{
		Name:      "Amani K.",
		Username:  "amani",
		LoginType: student.LoginImages,
		Images:    []string{"moon", "star", "sun"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Amani K.", s.Name)
	assert.Equal(t, student.LoginImages, s.LoginType)
	assert.Error(t, s.CheckCredentials(student.Credentials{PIN: "4321"}))
	assert.NoError(t, s.CheckCredentials(student.Credentials{Images: []string{"moon", "star", "sun"}}))

	// an update without secret keeps the credentials
	inactive := false
	s, err = svc.Update(ctx, s.ID, student.UpdateStudent{Name: s.Name, Username: s.Username, LoginType: s.LoginType, IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, s.IsActive)
	assert.NoError(t, s.CheckCredentials(student.Credentials{Images: []string{"moon", "star", "sun"}}))

	require.NoError(t, svc.Delete(ctx, s.ID))
	_, err = svc.GetByID(ctx, s.ID)
	assert.Equal(t, student.ErrNotFound, errors.Cause(err))
}

func TestNewStudent_Validate(t *testing.T) {
	svc, repo := newService(t)
	validate := newValidator()
	testutil.CreateStudent(t, repo, "Taken", "taken", student.LoginPIN, student.Credentials{PIN: "1234"}, "", true)

	tests := []struct {
		name    string
		ns      student.NewStudent
		wantErr bool
	}{
		{name: "pin", ns: student.NewStudent{Name: "A", Username: "kid_a", LoginType: student.LoginPIN, PIN: "123456"}},
		{name: "images", ns: student.NewStudent{Name: "B", Username: "kid_b", LoginType: student.LoginImages, Images: []string{"cat", "dog"}}},
		{name: "password", ns: student.NewStudent{Name: "C", Username: "kid_c", LoginType: student.LoginPassword, Password: "secret"}},
		{name: "pin too short", ns: student.NewStudent{Name: "D", Username: "kid_d", LoginType: student.LoginPIN, PIN: "123"}, wantErr: true},
		{name: "pin not numeric", ns: student.NewStudent{Name: "D", Username: "kid_d", LoginType: student.LoginPIN, PIN: "12ab"}, wantErr: true},
		{name: "missing secret", ns: student.NewStudent{Name: "E", Username: "kid_e", LoginType: student.LoginPassword}, wantErr: true},
		{name: "single image", ns: student.NewStudent{Name: "F", Username: "kid_f", LoginType: student.LoginImages, Images: []string{"cat"}}, wantErr: true},
		{name: "image outside catalogue", ns: student.NewStudent{Name: "F", Username: "kid_f", LoginType: student.LoginImages, Images: []string{"cat", "unicorn"}}, wantErr: true},
		{name: "unknown login type", ns: student.NewStudent{Name: "G", Username: "kid_g", LoginType: "face", PIN: "1234"}, wantErr: true},
		{name: "username taken", ns: student.NewStudent{Name: "H", Username: " TAKEN ", LoginType: student.LoginPIN, PIN: "1234"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ns.Validate(validate, svc)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
