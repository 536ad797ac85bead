package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/satswap/satswap/api/apierr"
	"github.com/satswap/satswap/api/auth"
	"github.com/satswap/satswap/api/httptypes"
	"github.com/satswap/satswap/metrics"
	"github.com/satswap/satswap/models/users"
)

// createUser registers a new user with an empty profile
func (r *RestServer) createUser() gin.HandlerFunc {
	type request struct {
		Username string `json:"username" binding:"required,username,max=150"`
		Password string `json:"password" binding:"required,max=72"`
	}

	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			apierr.Bind(c, err)
			return
		}

		user, err := r.accounts.Register(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			if !errors.Is(err, users.ErrUsernameTaken) {
				log.WithError(err).Error("Could not create user")
			}
			apierr.Handle(c, err)
			return
		}

		log.WithField("userId", user.ID).Info("Created user")
		c.JSON(http.StatusOK, httptypes.Success("Account created successfully.", user))
	}
}

// loginUser checks the given credentials, and hands out a JWT for them
func (r *RestServer) loginUser() gin.HandlerFunc {
	type request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	// loginResponse includes a JWT and the user it identifies
	type loginResponse struct {
		AccessToken string     `json:"accessToken"`
		User        users.User `json:"user"`
	}

	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			apierr.Bind(c, err)
			return
		}

		user, err := r.accounts.Authenticate(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			metrics.RecordLogin(false)
			apierr.Handle(c, err)
			return
		}

		token, err := auth.CreateJwt(user.Username, user.ID)
		if err != nil {
			log.WithError(err).Error("Could not create JWT")
			apierr.Handle(c, err)
			return
		}
		metrics.RecordLogin(true)

		c.JSON(http.StatusOK, httptypes.Success("Logged in successfully.", loginResponse{
			AccessToken: token,
			User:        user,
		}))
	}
}

// logout revokes the JWT the request was made with
func (r *RestServer) logout() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.Logout(c.Request.Context(), c, r.revoker); err != nil {
			log.WithError(err).Error("Could not log out")
			apierr.Handle(c, err)
			return
		}
		c.JSON(http.StatusOK, httptypes.Success("Logged out successfully.", nil))
	}
}

// getProfile returns the authenticated user, profile included
func (r *RestServer) getProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			return
		}

		user, err := r.accounts.GetProfile(c.Request.Context(), userID)
		if err != nil {
			apierr.Handle(c, err)
			return
		}

		response := httptypes.Success("", user)
		if !user.HasCompleteProfile() {
			response.Message = httptypes.Message{
				Level: httptypes.LevelWarning,
				Text:  "Please complete your profile to place and approve orders.",
			}
		}
		c.JSON(http.StatusOK, response)
	}
}

// updateProfile overwrites all four profile fields. Fields left out are
// cleared.
func (r *RestServer) updateProfile() gin.HandlerFunc {
	type request struct {
		Name            string `json:"name" binding:"max=150"`
		CardNumber      string `json:"cardNumber" binding:"omitempty,cardnumber"`
		LightningWallet string `json:"lightningWallet" binding:"max=255"`
		TelegramID      string `json:"telegramId" binding:"max=150"`
	}

	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			return
		}

		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			apierr.Bind(c, err)
			return
		}

		user, err := r.accounts.UpdateProfile(c.Request.Context(), userID, users.Profile{
			Name:            req.Name,
			CardNumber:      req.CardNumber,
			LightningWallet: req.LightningWallet,
			TelegramID:      req.TelegramID,
		})
		if err != nil {
			apierr.Handle(c, err)
			return
		}

		c.JSON(http.StatusOK, httptypes.Success("Profile updated successfully.", user))
	}
}

// viewProfile shows the profile of another user. This is only allowed
// between users that have approved one of each other's orders.
func (r *RestServer) viewProfile() gin.HandlerFunc {
	type request struct {
		ID int `uri:"id" binding:"required"`
	}

	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			return
		}

		var req request
		if err := c.ShouldBindUri(&req); err != nil {
			apierr.Bind(c, err)
			return
		}

		user, err := r.trading.ViewProfile(c.Request.Context(), userID, req.ID)
		if err != nil {
			apierr.Handle(c, err)
			return
		}

		c.JSON(http.StatusOK, httptypes.Success("", user))
	}
}
