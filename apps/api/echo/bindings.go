package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ifeobi/sms-backend/core"
	"github.com/ifeobi/sms-backend/core/user"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Type     string `json:"type" validate:"omitempty,oneof=ADMIN PARENT STUDENT"`
}

func (lr *LoginRequest) Validate() error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	if lr.Type == "" {
		lr.Type = user.TypeAdmin
	}
	return core.Validate.Struct(lr)
}

type LoginResponse struct {
	Token string `json:"token"`
}

type SuccessResponse struct {
	Success string `json:"success"`
}

type VerifyParentRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,alphanum"`
}

func (vr *VerifyParentRequest) Validate() error {
	vr.Email = core.CleanString(vr.Email, true /* lower */)
	vr.Code = strings.ToUpper(core.CleanString(vr.Code))
	return core.Validate.Struct(vr)
}
