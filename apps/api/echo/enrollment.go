package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ifeobi/sms-backend/core"
	"github.com/ifeobi/sms-backend/core/enrollment"
)

// the same response is returned whether the code is unknown, expired, spent
// or bound to another email; it must not help an attacker enumerate codes.
const verificationFailedMsg = "Verification failed. The code is invalid, has expired, or does not match this email address."

type enrollmentApi struct {
	svc enrollment.Service
}

func registerEnrollmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc enrollment.Service) {
	api := enrollmentApi{svc: svc}

	sg := g.Group("/schools", jwt, adminMiddleware())
	sg.POST("/:id/imports", api.startImport)
	sg.GET("/:id/imports", api.queryImports)

	ig := g.Group("/imports", jwt, adminMiddleware())
	ig.GET("/:id/progress", api.progress)

	// un-authed endpoint; parents redeem codes before they can log in
	// TODO: rate limit `/verify`
	pg := g.Group("/parents")
	pg.POST("/verify", api.verifyParent)
}

// Handlers

func (api *enrollmentApi) startImport(ctx echo.Context) error {
	var data enrollment.NewImport
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewImport")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	job, err := api.svc.StartImport(ctx.Request().Context(), ctx.Param("id"), claims.Subject, data)
	if err != nil {
		return err
	}

	// the job is accepted; rows are processed out of band
	return ctx.JSON(http.StatusAccepted, job)
}

func (api *enrollmentApi) progress(ctx echo.Context) error {
	progress, err := api.svc.GetProgress(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == enrollment.ErrJobNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting import progress")
	}
	return ctx.JSON(http.StatusOK, progress)
}

func (api *enrollmentApi) queryImports(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	jobs, err := api.svc.QueryJobs(ctx.Request().Context(), ctx.Param("id"), ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying import jobs")
	}
	if jobs == nil {
		jobs = []enrollment.ImportJob{}
	}
	return ctx.JSON(http.StatusOK, jobs)
}

func (api *enrollmentApi) verifyParent(ctx echo.Context) error {
	var data VerifyParentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyParentRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	verification, err := api.svc.VerifyParent(ctx.Request().Context(), data.Email, data.Code)
	if err != nil {
		switch errors.Cause(err) {
		case enrollment.ErrCodeInvalid, enrollment.ErrCodeMismatch, enrollment.ErrRelationshipNotFound:
			return core.NewValidationError(errors.New(verificationFailedMsg))
		}
		return errors.Wrap(err, "verifying parent")
	}
	return ctx.JSON(http.StatusOK, verification)
}
