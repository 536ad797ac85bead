// Package apierr provides functionality for handling errors in our API.
// This includes both creating middleware for this, as well as terminating
// requests in a way that ensure a smooth user experience.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/satswap/satswap/api/httptypes"
	"github.com/satswap/satswap/models/orders"
	"github.com/satswap/satswap/models/users"
	"github.com/satswap/satswap/trading"
)

// Pages a client can send the user to after an error
const (
	RedirectLogin    = "/login"
	RedirectRegister = "/register"
	RedirectProfile  = "/profile"
	RedirectOrder    = "/order"
	RedirectHome     = "/home"
)

// apiError is a type we can pass in to the Public method of this package.
// Every outcome has exactly one code, and with it a HTTP status, a message
// level and a page to redirect to.
type apiError struct {
	err      error
	code     string
	status   int
	level    httptypes.Level
	redirect string
}

func (a apiError) Error() string {
	return pkgerrors.Wrap(a.err, a.code).Error()
}

// Is provides functionality for comparing errors
func (a apiError) Is(err error) bool {
	if stdErr, ok := err.(httptypes.StandardErrorResponse); ok {
		return stdErr.ErrorField.Code == a.code
	}
	if aErr, ok := err.(apiError); ok {
		return a.code == aErr.code
	}
	return a.err.Error() == err.Error()
}

// Code is the machine readable code of the error
func (a apiError) Code() string { return a.code }

// Status is the HTTP status the error is returned with
func (a apiError) Status() int { return a.status }

var (
	ErrUsernameTaken = apiError{
		err:      errors.New("this username is already taken"),
		code:     "ERR_USERNAME_TAKEN",
		status:   http.StatusConflict,
		level:    httptypes.LevelWarning,
		redirect: RedirectRegister,
	}
	ErrInvalidCredentials = apiError{
		err:      errors.New("invalid username or password"),
		code:     "ERR_INVALID_CREDENTIALS",
		status:   http.StatusUnauthorized,
		level:    httptypes.LevelDanger,
		redirect: RedirectLogin,
	}
	ErrUserNotFound = apiError{
		err:      errors.New("user not found"),
		code:     "ERR_USER_NOT_FOUND",
		status:   http.StatusNotFound,
		level:    httptypes.LevelDanger,
		redirect: RedirectHome,
	}
	ErrOrderNotFound = apiError{
		err:      errors.New("order not found"),
		code:     "ERR_ORDER_NOT_FOUND",
		status:   http.StatusNotFound,
		level:    httptypes.LevelDanger,
		redirect: RedirectHome,
	}
	ErrInvalidAmount = apiError{
		err: fmt.Errorf("satoshi amount must be between %d and %d",
			int64(orders.MinAmount), int64(orders.MaxAmount)),
		code:     "ERR_INVALID_AMOUNT",
		status:   http.StatusBadRequest,
		level:    httptypes.LevelDanger,
		redirect: RedirectOrder,
	}
	ErrInvalidOrderType = apiError{
		err:      errors.New("order type must be buy or sell"),
		code:     "ERR_INVALID_ORDER_TYPE",
		status:   http.StatusBadRequest,
		level:    httptypes.LevelDanger,
		redirect: RedirectOrder,
	}
	ErrNotOrderOwner = apiError{
		err:      errors.New("you are not allowed to delete this order"),
		code:     "ERR_NOT_ORDER_OWNER",
		status:   http.StatusForbidden,
		level:    httptypes.LevelDanger,
		redirect: RedirectHome,
	}
	ErrSelfApproval = apiError{
		err:      errors.New("you cannot approve your own order"),
		code:     "ERR_SELF_APPROVAL",
		status:   http.StatusForbidden,
		level:    httptypes.LevelDanger,
		redirect: RedirectHome,
	}
	ErrAlreadyApproved = apiError{
		err:      errors.New("this order has already been approved"),
		code:     "ERR_ALREADY_APPROVED",
		status:   http.StatusConflict,
		level:    httptypes.LevelWarning,
		redirect: RedirectHome,
	}
	ErrIncompleteProfile = apiError{
		err:      errors.New("please complete your profile first"),
		code:     "ERR_INCOMPLETE_PROFILE",
		status:   http.StatusForbidden,
		level:    httptypes.LevelWarning,
		redirect: RedirectProfile,
	}
	ErrProfileNotVisible = apiError{
		err:      errors.New("only trading partners can view each other's profiles"),
		code:     "ERR_PROFILE_NOT_VISIBLE",
		status:   http.StatusForbidden,
		level:    httptypes.LevelDanger,
		redirect: RedirectHome,
	}

	// ErrNotAuthenticated means the request had no auth header
	ErrNotAuthenticated = apiError{
		err:      errors.New("please log in first"),
		code:     "ERR_NOT_AUTHENTICATED",
		status:   http.StatusUnauthorized,
		level:    httptypes.LevelWarning,
		redirect: RedirectLogin,
	}
	//ErrMalformedJwt means the given JWT was malformed
	ErrMalformedJwt = apiError{
		err:      errors.New("malformed JWT"),
		code:     "ERR_MALFORMED_JWT",
		status:   http.StatusUnauthorized,
		level:    httptypes.LevelWarning,
		redirect: RedirectLogin,
	}
	//ErrInvalidJwtSignature means the JWT signature was invalid
	ErrInvalidJwtSignature = apiError{
		err:      errors.New("invalid JWT signature"),
		code:     "ERR_INVALID_JWT_SIGNATURE",
		status:   http.StatusUnauthorized,
		level:    httptypes.LevelWarning,
		redirect: RedirectLogin,
	}
	//ErrExpiredJwt means we were given an expired JWT
	ErrExpiredJwt = apiError{
		err:      errors.New("your session has expired, please log in again"),
		code:     "ERR_EXPIRED_JWT",
		status:   http.StatusUnauthorized,
		level:    httptypes.LevelWarning,
		redirect: RedirectLogin,
	}
	//ErrJwtNotValidYet means the given JWT has a start time set in the future
	ErrJwtNotValidYet = apiError{
		err:      errors.New("JWT is not valid yet"),
		code:     "ERR_JWT_NOT_VALID_YET",
		status:   http.StatusUnauthorized,
		level:    httptypes.LevelWarning,
		redirect: RedirectLogin,
	}
	// ErrRevokedJwt means the JWT was used after logging out
	ErrRevokedJwt = apiError{
		err:      errors.New("you have logged out, please log in again"),
		code:     "ERR_REVOKED_JWT",
		status:   http.StatusUnauthorized,
		level:    httptypes.LevelWarning,
		redirect: RedirectLogin,
	}
	// ErrTooManyRequests means the client is being throttled
	ErrTooManyRequests = apiError{
		err:      errors.New("too many attempts, please wait a moment"),
		code:     "ERR_TOO_MANY_REQUESTS",
		status:   http.StatusTooManyRequests,
		level:    httptypes.LevelWarning,
		redirect: RedirectLogin,
	}

	// errInvalidJson means we got sent invalid JSON
	errInvalidJson = apiError{
		err:    errors.New("invalid JSON"),
		code:   "ERR_INVALID_JSON",
		status: http.StatusBadRequest,
		level:  httptypes.LevelDanger,
	}
	errBodyRequired = apiError{
		err:    errors.New("JSON body required"),
		code:   "ERR_BODY_REQUIRED",
		status: http.StatusBadRequest,
		level:  httptypes.LevelDanger,
	}
	// ErrRequestValidationFailed means the user gave us an invalid request,
	// either in JSON, URL or query format
	ErrRequestValidationFailed = apiError{
		err:    errors.New("request validation failed"),
		code:   "ERR_REQUEST_VALIDATION_FAILED",
		status: http.StatusBadRequest,
		level:  httptypes.LevelDanger,
	}
	// ErrUnknownError means we don't know exactly what went wrong
	ErrUnknownError = apiError{
		err:      errors.New("something went wrong"),
		code:     "ERR_UNKNOWN_ERROR",
		status:   http.StatusInternalServerError,
		level:    httptypes.LevelDanger,
		redirect: RedirectHome,
	}
	// ErrRouteNotFound means the requested HTTP route wasn't found
	ErrRouteNotFound = apiError{
		err:      errors.New("route not found"),
		code:     "ERR_ROUTE_NOT_FOUND",
		status:   http.StatusNotFound,
		level:    httptypes.LevelDanger,
		redirect: RedirectHome,
	}
)

// domainErrors maps the errors of the core packages to what we show users
var domainErrors = []struct {
	sentinel error
	public   apiError
}{
	{users.ErrUsernameTaken, ErrUsernameTaken},
	{users.ErrInvalidCredentials, ErrInvalidCredentials},
	{users.ErrUserNotFound, ErrUserNotFound},
	{users.ErrIncompleteProfile, ErrIncompleteProfile},
	{orders.ErrOrderNotFound, ErrOrderNotFound},
	{orders.ErrInvalidAmount, ErrInvalidAmount},
	{orders.ErrInvalidOrderType, ErrInvalidOrderType},
	{orders.ErrNotOwner, ErrNotOrderOwner},
	{orders.ErrSelfApproval, ErrSelfApproval},
	{orders.ErrAlreadyApproved, ErrAlreadyApproved},
	{trading.ErrProfileHidden, ErrProfileNotVisible},
}

// Public fails the given Gin request with the given error. It sets the error
// type as public, causing it to later be returned to the end user with a
// fitting error message.
func Public(c *gin.Context, err apiError) {
	c.Status(err.status)
	_ = c.Error(err).SetType(gin.ErrorTypePublic)
	c.Abort()
}

// Handle fails the given Gin request with the given error. Errors from the
// core packages become their public counterpart, everything else is kept
// private and reported as an unknown error.
func Handle(c *gin.Context, err error) {
	for _, known := range domainErrors {
		if errors.Is(err, known.sentinel) {
			Public(c, known.public)
			return
		}
	}

	c.Status(http.StatusInternalServerError)
	_ = c.Error(err).SetType(gin.ErrorTypePrivate)
	c.Abort()
}

// Bind fails the given Gin request with a request binding error
func Bind(c *gin.Context, err error) {
	c.Status(http.StatusBadRequest)
	_ = c.Error(err).SetType(gin.ErrorTypeBind)
	c.Abort()
}

// capitalize makes the first element of a string uppercase
func capitalize(str string) string {
	for index, c := range str {
		return string(unicode.ToUpper(c)) + str[index+len(string(c)):]
	}
	return ""
}

// sentence capitalizes the given message and ends it with a period
func sentence(str string) string {
	str = capitalize(str)
	if str != "" && !strings.HasSuffix(str, ".") {
		str += "."
	}
	return str
}

// redirectForRoute picks the page a user fixing a bad request goes back to
func redirectForRoute(route string) string {
	switch {
	case route == "/login":
		return RedirectLogin
	case route == "/users":
		return RedirectRegister
	case strings.HasPrefix(route, "/profile"):
		return RedirectProfile
	case route == "/orders":
		return RedirectOrder
	default:
		return RedirectHome
	}
}

func (a apiError) into(response *httptypes.StandardErrorResponse) {
	response.ErrorField.Code = a.code
	response.ErrorField.Message = sentence(a.err.Error())
	response.Message.Level = a.level
	if a.redirect != "" {
		response.ErrorField.Redirect = a.redirect
	}
}

// GetMiddleware returns a Gin middleware that handles errors
func GetMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {

		// let previous handlers run
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		httpCode := c.Writer.Status()
		if httpCode < http.StatusBadRequest {
			// default to 500 if no error status has been set
			httpCode = http.StatusInternalServerError
		}

		fieldErrors := handleValidationErrors(c, log)
		response := &httptypes.StandardErrorResponse{
			ErrorField: httptypes.StandardError{
				Fields:   fieldErrors,
				Redirect: redirectForRoute(c.FullPath()),
			},
		}

		// Check for JSON parsing errors
		for _, err := range c.Errors.ByType(gin.ErrorTypeBind) {
			var syntaxErr *json.SyntaxError
			if errors.Is(err.Err, io.EOF) {
				errBodyRequired.into(response)
				response.Message.Text = response.ErrorField.Message
				c.JSON(http.StatusBadRequest, response)
				return
			} else if errors.As(err.Err, &syntaxErr) {
				errInvalidJson.into(response)
				response.Message.Text = response.ErrorField.Message
				c.JSON(http.StatusBadRequest, response)
				return
			}
		}

		// public errors are errors that can be shown to the end user
		publicErrors := c.Errors.ByType(gin.ErrorTypePublic)
		if len(publicErrors) > 0 {
			// our error format only has space for one error, and handlers
			// return as soon as they fail
			err := publicErrors.Last()
			if apiErr, ok := err.Err.(apiError); ok {
				apiErr.into(response)
				httpCode = apiErr.status
			} else {
				log.WithError(err).Warn("Got public error in error handler that was not apiError type")
				ErrUnknownError.into(response)
			}
		}

		// ensure all responses have a code
		if response.ErrorField.Code == "" {
			if len(fieldErrors) > 0 {
				// if we have any field errors, request validation failed
				ErrRequestValidationFailed.into(response)
				httpCode = http.StatusBadRequest
			} else {
				log.WithField("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()).
					Error("Request failed with an unknown error")
				ErrUnknownError.into(response)
				httpCode = http.StatusInternalServerError
			}
		}

		response.Message.Text = response.ErrorField.Message
		c.JSON(httpCode, response)
	}
}

// UnknownValidationTag is the tag we apply when encountering a validation tag
// we don't know how to handle
const UnknownValidationTag = "unknown"

func handleValidationErrors(c *gin.Context, log *logrus.Logger) []httptypes.FieldError {
	// initialize to empty list instead of pointer, to make sure the empty list
	// is returned instead of nil
	fieldErrors := []httptypes.FieldError{}
	for _, err := range c.Errors.ByType(gin.ErrorTypeBind) {
		// parsing path parameters and query values into numbers fails before
		// any validation happens
		var numError *strconv.NumError
		if errors.As(err.Err, &numError) {
			fieldErrors = append(fieldErrors, httptypes.FieldError{
				Field:   "unknown",
				Message: fmt.Sprintf("%q is not a valid number", numError.Num),
				Code:    "invalid-number",
			})
			continue
		}

		// if we pass an int to a JSON field expecting a string (or something similar),
		// we end up with this kind of error, not a validator.ValidationErrors
		var jsonError *json.UnmarshalTypeError
		if errors.As(err.Err, &jsonError) {
			log.WithError(jsonError).WithFields(logrus.Fields{
				"field": jsonError.Field,
				"value": jsonError.Value,
				"type":  jsonError.Type,
			}).Debug("Handling JSON error")
			fieldErrors = append(fieldErrors, httptypes.FieldError{
				Field:   jsonError.Field,
				Message: fmt.Sprintf("%q requires a %s, got a %s", jsonError.Field, jsonError.Type, jsonError.Value),
				Code:    "invalid-type",
			})
			continue
		}

		var validationErrors validator.ValidationErrors
		if !errors.As(err.Err, &validationErrors) {
			continue
		}
		for _, validationErr := range validationErrors {
			// field names are the JSON names, see validation.RegisterAllValidators
			field := validationErr.Field()
			var message string
			code := validationErr.Tag()
			switch validationErr.Tag() {
			case "required":
				message = fmt.Sprintf("%q is required", field)
			case "max":
				message = fmt.Sprintf("%q cannot be longer than %s characters", field, validationErr.Param())
			case "min":
				message = fmt.Sprintf("%q must be at least %s characters", field, validationErr.Param())
			case "cardnumber":
				message = fmt.Sprintf("%q must be exactly 16 digits", field)
			case "username":
				message = fmt.Sprintf("%q cannot contain whitespace", field)
			default:
				log.WithField("tag", validationErr.Tag()).Warn("Encountered unknown validation field")
				message = fmt.Sprintf("%s is invalid", field)
				code = UnknownValidationTag
			}
			fieldErrors = append(fieldErrors, httptypes.FieldError{
				Field:   field,
				Message: message,
				Code:    code,
			})
		}
	}
	return fieldErrors
}
