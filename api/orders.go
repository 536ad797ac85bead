package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/satswap/satswap/api/apierr"
	"github.com/satswap/satswap/api/auth"
	"github.com/satswap/satswap/api/httptypes"
)

// orderURI is the order an order route operates on
type orderURI struct {
	ID int `uri:"id" binding:"required"`
}

// home returns everything the landing page of a logged in user shows: the
// user, the order board and the user's notifications
func (r *RestServer) home() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			return
		}

		dashboard, err := r.trading.Dashboard(c.Request.Context(), userID)
		if err != nil {
			apierr.Handle(c, err)
			return
		}

		c.JSON(http.StatusOK, httptypes.Success("", dashboard))
	}
}

// getOrders returns the order board, newest first
func (r *RestServer) getOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		board, err := r.trading.ListOrders(c.Request.Context())
		if err != nil {
			apierr.Handle(c, err)
			return
		}
		c.JSON(http.StatusOK, httptypes.Success("", board))
	}
}

// placeOrder places a buy or sell order for the authenticated user
func (r *RestServer) placeOrder() gin.HandlerFunc {
	type request struct {
		Type string `json:"type" binding:"required"`
		// a pointer, so that 0 is a bad amount and not a missing one
		Amount *int64 `json:"amount" binding:"required"`
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

		order, err := r.trading.PlaceOrder(c.Request.Context(), userID, req.Type, *req.Amount)
		if err != nil {
			apierr.Handle(c, err)
			return
		}

		c.JSON(http.StatusOK, httptypes.Success(
			fmt.Sprintf("Your order was placed: type %s, %d satoshis.", order.Type, order.Amount),
			order))
	}
}

// withdrawOrder deletes one of the authenticated user's orders
func (r *RestServer) withdrawOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			return
		}

		var uri orderURI
		if err := c.ShouldBindUri(&uri); err != nil {
			apierr.Bind(c, err)
			return
		}

		if err := r.trading.WithdrawOrder(c.Request.Context(), userID, uri.ID); err != nil {
			apierr.Handle(c, err)
			return
		}

		c.JSON(http.StatusOK, httptypes.Success("Order deleted successfully.", nil))
	}
}

// approveOrder approves another user's order, making the two users trading
// partners
func (r *RestServer) approveOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			return
		}

		var uri orderURI
		if err := c.ShouldBindUri(&uri); err != nil {
			apierr.Bind(c, err)
			return
		}

		order, err := r.trading.Approve(c.Request.Context(), userID, uri.ID)
		if err != nil {
			apierr.Handle(c, err)
			return
		}

		c.JSON(http.StatusOK, httptypes.Success(
			"Order approved. You can now view each other's profiles.", order))
	}
}

// getNotifications returns the authenticated user's notifications, newest
// first
func (r *RestServer) getNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			return
		}

		feed, err := r.trading.Notifications(c.Request.Context(), userID)
		if err != nil {
			apierr.Handle(c, err)
			return
		}
		c.JSON(http.StatusOK, httptypes.Success("", feed))
	}
}
