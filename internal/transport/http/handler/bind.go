package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var fieldLabels = map[string]string{
	"Name":            "Name",
	"Email":           "Email",
	"Password":        "Password",
	"Role":            "Role",
	"OTP":             "OTP",
	"OldPassword":     "Old password",
	"NewPassword":     "New password",
	"ConfirmPassword": "Confirm password",
	"Phone":           "Phone",
	"Address":         "Address",
	"City":            "City",
	"State":           "State",
	"Pincode":         "Pincode",
}

// bindJSON decodes and validates the body into req. On failure it writes a
// 400 carrying the first failing field's message and returns false.
func bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fail(c, http.StatusBadRequest, fieldMessage(verrs[0]))
		return false
	}
	fail(c, http.StatusBadRequest, errInvalidBody)
	return false
}

func fieldMessage(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Please enter a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", label, fe.Param())
	case "numeric":
		return label + " must contain only digits"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return label + " is invalid"
	}
}
