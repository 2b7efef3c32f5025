package admin

import (
	"net/http"

	"github.com/placementcell/campus-api/internal/apierror"
)

// Error codes specific to token administration.
const (
	// ErrCodeCannotDeleteLastAdmin indicates last admin protection.
	ErrCodeCannotDeleteLastAdmin = "cannot_delete_last_admin"

	// ErrCodeNoAdminTokenExists indicates the first token must hold an admin role.
	ErrCodeNoAdminTokenExists = "no_admin_token_exists"

	// ErrCodeUnknownRole indicates a role the policy registry does not know.
	ErrCodeUnknownRole = "unknown_role"
)

var (
	errLastAdmin = apierror.New(http.StatusConflict, ErrCodeCannotDeleteLastAdmin,
		"cannot delete the last admin token")
	errFirstTokenNotAdmin = apierror.New(http.StatusUnprocessableEntity, ErrCodeNoAdminTokenExists,
		"the first token must have an admin role")
)

func errUnknownRole(role string) *apierror.APIError {
	return apierror.New(http.StatusUnprocessableEntity, ErrCodeUnknownRole, "unknown role: "+role)
}
