package main

import (
	"context"
	"strings"
	"time"

	"github.com/ifeobi/sms-backend/core"
	"github.com/ifeobi/sms-backend/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, email, pwd, userType string) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)
	userType = strings.ToUpper(core.CleanString(userType))

	nu := user.NewUser{Type: userType, Name: name, Email: email, Password: pwd}
	if err := nu.Validate(); err != nil {
		return err
	}

	usr, err := cli.usrRepo.GetUserByEmailAndType(ctx, email, userType)
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Type:      userType,
			Email:     email,
			CreatedAt: time.Now().UTC(),
		}
	}
	usr.Name = name
	usr.IsActive = true
	usr.UpdatedAt = time.Now().UTC()
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}
