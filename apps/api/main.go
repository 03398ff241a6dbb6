package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	echoapi "github.com/ifeobi/sms-backend/apps/api/echo"
	"github.com/ifeobi/sms-backend/core"
	"github.com/ifeobi/sms-backend/core/enrollment"
	"github.com/ifeobi/sms-backend/core/user"
	emailsvc "github.com/ifeobi/sms-backend/services/email"
	logsvc "github.com/ifeobi/sms-backend/services/logger"
	"github.com/ifeobi/sms-backend/storage/database"
	sqlxrepos "github.com/ifeobi/sms-backend/storage/database/sqlx"
)

func main() {
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	logger := logsvc.NewRollbarLogger(std, core.Conf)
	logger.Enable(!core.Conf.Debug)

	if err := run(logger); err != nil {
		logger.Fatal("running app", err)
	}
}

func run(logger core.Logger) error {
	// set up DB
	db, err := database.Open(core.Conf)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}
	notifier := emailsvc.NewEnrollmentNotifier(mailSvc)

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db))
	schoolRepo := sqlxrepos.NewSchoolRepository(db)
	enrSvc := enrollment.NewService(
		sqlxrepos.NewEnrollmentRepository(db),
		schoolRepo,
		usrSvc,
		notifier,
		logger,
	)

	// start API server
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	app := echoapi.NewServer(
		&echoapi.Options{
			Addr:          core.Conf.Server.Addr,
			UserSvc:       usrSvc,
			EnrollmentSvc: enrSvc,
			Logger:        logger,
			Shutdown:      shutdown,
		},
	)

	serverErrors := make(chan error, 1)
	go func() { serverErrors <- app.Start() }()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-shutdown:
		logger.Info("shutting down", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := app.Stop(ctx); err != nil {
			return err
		}
	}
	return nil
}
