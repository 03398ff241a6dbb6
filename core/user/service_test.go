package user_test

import (
	"context"
	"testing"

	"github.com/ifeobi/sms-backend/core/user"
	dummydb "github.com/ifeobi/sms-backend/storage/database/dummy"
)

func setup(t *testing.T) (user.Service, user.Repository) {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	repo := dummydb.NewUserRepository(db)
	return user.NewService(repo), repo
}

func TestService_Create(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	usr, err := svc.Create(ctx, user.NewUser{
		Type:     user.TypeParent,
		Name:     " Anne Lovelace ",
		Email:    " Anne@Family.CD ",
		Password: "S3cr3t.Pwd",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if usr.Email != "anne@family.cd" {
		t.Errorf("usr.Email = %s, want anne@family.cd", usr.Email)
	}
	if usr.Name != "Anne Lovelace" {
		t.Errorf("usr.Name = %s, want Anne Lovelace", usr.Name)
	}
	if !usr.IsActive {
		t.Error("usr.IsActive = false, want true")
	}
	if err = usr.CheckPassword("S3cr3t.Pwd"); err != nil {
		t.Errorf("CheckPassword() error = %v", err)
	}

	// same (email, type) is rejected by storage
	_, err = svc.Create(ctx, user.NewUser{
		Type:     user.TypeParent,
		Name:     "Anne Again",
		Email:    "anne@family.cd",
		Password: "0ther.Pwd!",
	})
	if err != user.ErrEmailExists {
		t.Errorf("Create(duplicate) error = %v, want %v", err, user.ErrEmailExists)
	}

	// same email under another type is a different account
	if _, err = svc.Create(ctx, user.NewUser{
		Type:     user.TypeStudent,
		Name:     "Anne Junior",
		Email:    "anne@family.cd",
		Password: "S3cr3t.Pwd",
	}); err != nil {
		t.Errorf("Create(same email, other type) error = %v", err)
	}
}

func TestService_GetOrCreate(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	nu := user.NewUser{
		Type:     user.TypeParent,
		Name:     "Walter Hopper",
		Email:    "walter@family.cd",
		Password: "S3cr3t.Pwd",
	}

	usr, created, err := svc.GetOrCreate(ctx, nu)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if !created {
		t.Error("GetOrCreate() created = false, want true")
	}

	// converges on the existing account, ignoring the new credentials
	again, created, err := svc.GetOrCreate(ctx, user.NewUser{
		Type:     user.TypeParent,
		Name:     "Walt Hopper",
		Email:    "Walter@Family.cd",
		Password: "Different.1",
	})
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if created {
		t.Error("GetOrCreate() created = true, want false")
	}
	if again.ID != usr.ID {
		t.Errorf("GetOrCreate() ID = %s, want %s", again.ID, usr.ID)
	}
	if err = again.CheckPassword("S3cr3t.Pwd"); err != nil {
		t.Errorf("CheckPassword(original) error = %v", err)
	}
}
