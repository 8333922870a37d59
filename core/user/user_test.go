package user_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/user"
	"github.com/trezcool/alama/tests"
)

func TestNewUser_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()
	valid := func() user.NewUser {
		return user.NewUser{
			Name:            "Jane",
			Username:        "Jane_D",
			Password:        "s3cr3t-Pwd",
			PasswordConfirm: "s3cr3t-Pwd",
			Roles:           []string{user.RoleLecturer},
		}
	}

	tests := []struct {
		name    string
		mutate  func(nu *user.NewUser)
		wantErr map[string]string // field: tag
	}{
		{name: "valid", mutate: func(nu *user.NewUser) {}},
		{name: "email only", mutate: func(nu *user.NewUser) { nu.Username, nu.Email = "", "Jane@Test.cd" }},
		{
			name:    "no username nor email",
			mutate:  func(nu *user.NewUser) { nu.Username = "" },
			wantErr: map[string]string{"username": "username_or_email", "email": "username_or_email"},
		},
		{name: "short username", mutate: func(nu *user.NewUser) { nu.Username = "jd" }, wantErr: map[string]string{"username": "min"}},
		{name: "bad username", mutate: func(nu *user.NewUser) { nu.Username = "jane.d" }, wantErr: map[string]string{"username": "alphanum_"}},
		{name: "bad email", mutate: func(nu *user.NewUser) { nu.Email = "lol" }, wantErr: map[string]string{"email": "email"}},
		{name: "unknown role", mutate: func(nu *user.NewUser) { nu.Roles = []string{"dean:"} }, wantErr: map[string]string{"roles": "allroles"}},
		{
			name:    "passwords differ",
			mutate:  func(nu *user.NewUser) { nu.PasswordConfirm = "s3cr3t-Pwd!" },
			wantErr: map[string]string{"password_confirm": "eqfield"},
		},
		{
			name:    "short password",
			mutate:  func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "s3-Pwd", "s3-Pwd" },
			wantErr: map[string]string{"password": "pwdminlen"},
		},
		{
			name:    "password with spaces",
			mutate:  func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "s3cr3t Pwd", "s3cr3t Pwd" },
			wantErr: map[string]string{"password": "pwdnospace"},
		},
		{
			name:    "numeric password",
			mutate:  func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "12345678", "12345678" },
			wantErr: map[string]string{"password": "pwdnotallnum"},
		},
		{
			name:    "simple password",
			mutate:  func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "secretpwd", "secretpwd" },
			wantErr: map[string]string{"password": "pwdcplx"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			nu := valid()
			tt.mutate(&nu)
			err := nu.Validate(validate)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				assert.Equal(t, core.CleanString(nu.Email, true), nu.Email)
				return
			}
			verrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok, "got %v", err)
			got := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				got[fe.Field()] = fe.Tag()
			}
			assert.Equal(t, tt.wantErr, got)
		})
	}
}

func TestService(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	existing := testutil.CreateUser(t, env.UsrRepo, "John", "john", "john@test.cd", "", []string{user.RoleStudent}, true)

	_, err := env.UsrSvc.Create(ctx, user.NewUser{Name: "Other", Username: "john", Password: "s3cr3t-Pwd"})
	verr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, []core.FieldError{{Field: "username", Error: user.ErrUsernameExists.Error()}}, verr.Fields)

	_, err = env.UsrSvc.Create(ctx, user.NewUser{Name: "Other", Email: "john@test.cd", Password: "s3cr3t-Pwd"})
	verr, ok = errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "email", verr.Fields[0].Field)

	jane, err := env.UsrSvc.Create(ctx, user.NewUser{
		Name:     "Jane",
		Username: "jane",
		Email:    "jane@test.cd",
		Password: "s3cr3t-Pwd",
		Roles:    []string{user.RoleLecturer},
	})
	require.NoError(t, err)
	assert.True(t, jane.IsActive)
	assert.True(t, jane.IsLecturer())
	assert.True(t, jane.IsStaff())
	assert.False(t, jane.IsAdmin())
	assert.NoError(t, jane.CheckPassword("s3cr3t-Pwd"))
	assert.Error(t, jane.CheckPassword("lol"))

	for _, uname := range []string{"jane", " JANE ", "Jane@Test.cd"} {
		usr, err := env.UsrSvc.GetByUsernameOrEmail(ctx, uname)
		require.NoError(t, err, uname)
		assert.Equal(t, jane.ID, usr.ID, uname)
	}
	_, err = env.UsrSvc.GetByUsernameOrEmail(ctx, "lol")
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))

	assert.False(t, existing.LastLogin.Valid)
	usr, err := env.UsrSvc.SetLastLogin(ctx, existing)
	require.NoError(t, err)
	assert.True(t, usr.LastLogin.Valid)
	usr, err = env.UsrSvc.GetByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.True(t, usr.LastLogin.Valid)
}

func TestRoles(t *testing.T) {
	admin := user.User{Roles: []string{user.RoleAdminRegistrar}}
	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.IsStaff())
	assert.False(t, admin.IsStudent())

	std := user.User{Roles: user.StudentRoles}
	assert.True(t, std.IsStudent())
	assert.False(t, std.IsStaff())

	assert.Equal(t, 29, user.MaxRolePriority(user.AllRoles))
	assert.Equal(t, 11, user.MaxRolePriority([]string{user.RoleStudent, user.RoleLecturer}))
	assert.Zero(t, user.MaxRolePriority(nil))
}
