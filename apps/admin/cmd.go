package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/ifeobi/sms-backend/core/school"
	"github.com/ifeobi/sms-backend/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sqlx.DB
	usrRepo    user.Repository
	schoolRepo school.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate [command] - run DB migrations (default: up)")
	fmt.Println("  adduser -name NAME -email EMAIL [-type TYPE] - add or update a user; the password is prompted next")
	fmt.Println("  addschool -name NAME [-level LEVEL] [-class CLASS] - add a school with a default level and class")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserType := addUserCmd.String("type", user.TypeAdmin, "The account type: ADMIN, PARENT or STUDENT.")

	addSchoolCmd := flag.NewFlagSet("addschool", flag.ExitOnError)
	addSchoolName := addSchoolCmd.String("name", "", "The school's name.")
	addSchoolLevel := addSchoolCmd.String("level", "Grade 1", "The name of the school's first level.")
	addSchoolClass := addSchoolCmd.String("class", "A", "The name of the level's first class.")

	switch args[1] {
	case "migrate":
		command := "up"
		var arguments []string
		if len(args) > 2 {
			command = args[2]
			arguments = args[3:]
		}
		return cli.migrate(command, arguments...)
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, string(pwd), *addUserType)
	case "addschool":
		if err := addSchoolCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addSchoolName == "" {
			addSchoolCmd.Usage()
			return errHelp
		}
		return cli.addSchool(*addSchoolName, *addSchoolLevel, *addSchoolClass)
	default:
		cli.printUsage()
		return errHelp
	}
}
