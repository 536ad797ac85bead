package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satswap/satswap/api/apierr"
	"github.com/satswap/satswap/testutil/httptestutil"
)

func placeOrder(t *testing.T, owner trader, orderType string, amount int) int {
	t.Helper()
	req := httptestutil.GetAuthRequest(t, httptestutil.AuthRequestArgs{
		AccessToken: owner.token,
		Path:        "/orders",
		Method:      "POST",
		Body:        fmt.Sprintf(`{"type": %q, "amount": %d}`, orderType, amount),
	})
	res := h.AssertResponseOkWithJson(t, req)
	id, ok := httptestutil.Data(t, res)["id"].(float64)
	require.True(t, ok, "order ID missing from %v", res)
	return int(id)
}

func notificationTexts(t *testing.T, u trader) []string {
	t.Helper()
	req := httptestutil.GetAuthRequest(t, httptestutil.AuthRequestArgs{
		AccessToken: u.token, Path: "/notifications", Method: "GET",
	})
	res := h.AssertResponseOkWithJson(t, req)
	var texts []string
	for _, n := range httptestutil.DataList(t, res) {
		texts = append(texts, n.(map[string]interface{})["message"].(string))
	}
	return texts
}

func TestPlaceOrder(t *testing.T) {
	t.Parallel()
	owner := createTrader(t)

	t.Run("place an order", func(t *testing.T) {
		req := httptestutil.GetAuthRequest(t, httptestutil.AuthRequestArgs{
			AccessToken: owner.token,
			Path:        "/orders",
			Method:      "POST",
			Body:        `{"type": "buy", "amount": 5000}`,
		})
		res := h.AssertResponseOkWithJson(t, req)
		assert.Equal(t, "Your order was placed: type buy, 5000 satoshis.", httptestutil.MessageText(res))

		data := httptestutil.Data(t, res)
		assert.Equal(t, float64(owner.id), data["userId"])
		assert.Equal(t, false, data["isApproved"])
		assert.Nil(t, data["approvedBy"])

		assert.Contains(t, notificationTexts(t, owner), "Buy order for 5000 satoshis (0.00005 BTC) placed.")
	})

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"amount too small", `{"type": "buy", "amount": 500}`, http.StatusBadRequest, apierr.ErrInvalidAmount.Code()},
		{"amount too large", `{"type": "sell", "amount": 10001}`, http.StatusBadRequest, apierr.ErrInvalidAmount.Code()},
		{"zero amount", `{"type": "sell", "amount": 0}`, http.StatusBadRequest, apierr.ErrInvalidAmount.Code()},
		{"unknown type", `{"type": "hold", "amount": 5000}`, http.StatusBadRequest, apierr.ErrInvalidOrderType.Code()},
		{"missing amount", `{"type": "buy"}`, http.StatusBadRequest, apierr.ErrRequestValidationFailed.Code()},
		{"amount as string", `{"type": "buy", "amount": "5000"}`, http.StatusBadRequest, apierr.ErrRequestValidationFailed.Code()},
	}
	for _, tt := range tests {
		tt := tt
		t.Run("reject "+tt.name, func(t *testing.T) {
			req := httptestutil.GetAuthRequest(t, httptestutil.AuthRequestArgs{
				AccessToken: owner.token,
				Path:        "/orders",
				Method:      "POST",
				Body:        tt.body,
			})
			res := h.AssertResponseNotOkWithCode(t, req, tt.status)
			assert.Equal(t, tt.code, res.ErrorField.Code)
			assert.Equal(t, apierr.RedirectOrder, res.ErrorField.Redirect)
		})
	}

	t.Run("rejected orders leave no trace", func(t *testing.T) {
		assert.Len(t, notificationTexts(t, owner), 1)
	})

	t.Run("reject incomplete profile", func(t *testing.T) {
		newbie := createUser(t)
		req := httptestutil.GetAuthRequest(t, httptestutil.AuthRequestArgs{
			AccessToken: newbie.token,
			Path:        "/orders",
			Method:      "POST",
			Body:        `{"type": "buy", "amount": 5000}`,
		})
		res := h.AssertResponseNotOkWithCode(t, req, http.StatusForbidden)
		assert.Equal(t, apierr.ErrIncompleteProfile.Code(), res.ErrorField.Code)
		assert.Equal(t, apierr.RedirectProfile, res.ErrorField.Redirect)
	})
}

func TestWithdrawOrder(t *testing.T) {
	t.Parallel()
	owner := createTrader(t)
	other := createTrader(t)
	orderID := placeOrder(t, owner, "sell", 3000)

	withdraw := func(u trader) *http.Request {
		return httptestutil.GetAuthRequest(t, httptestutil.AuthRequestArgs{
			AccessToken: u.token,
			Path:        fmt.Sprintf("/orders/%d", orderID),
			Method:      "DELETE",
		})
	}

	res := h.AssertResponseNotOkWithCode(t, withdraw(other), http.StatusForbidden)
	assert.Equal(t, apierr.ErrNotOrderOwner.Code(), res.ErrorField.Code)

	ok := h.AssertResponseOkWithJson(t, withdraw(owner))
	assert.Equal(t, "Order deleted successfully.", httptestutil.MessageText(ok))
	assert.Contains(t, notificationTexts(t, owner), "Sell order for 3000 satoshis (0.00003 BTC) removed.")

	res = h.AssertResponseNotOkWithCode(t, withdraw(owner), http.StatusNotFound)
	assert.Equal(t, apierr.ErrOrderNotFound.Code(), res.ErrorField.Code)
}

func TestApproveOrder(t *testing.T) {
	t.Parallel()
	ali := createTrader(t)
	bob := createTrader(t)
	orderID := placeOrder(t, ali, "buy", 5000)

	approve := func(u trader, id int) *http.Request {
		return httptestutil.GetAuthRequest(t, httptestutil.AuthRequestArgs{
			AccessToken: u.token,
			Path:        fmt.Sprintf("/orders/%d/approve", id),
			Method:      "POST",
		})
	}

	t.Run("reject approving own order", func(t *testing.T) {
		res := h.AssertResponseNotOkWithCode(t, approve(ali, orderID), http.StatusForbidden)
		assert.Equal(t, apierr.ErrSelfApproval.Code(), res.ErrorField.Code)
	})

	t.Run("reject incomplete profile", func(t *testing.T) {
		newbie := createUser(t)
		res := h.AssertResponseNotOkWithCode(t, approve(newbie, orderID), http.StatusForbidden)
		assert.Equal(t, apierr.ErrIncompleteProfile.Code(), res.ErrorField.Code)
	})

	t.Run("approve", func(t *testing.T) {
		res := h.AssertResponseOkWithJson(t, approve(bob, orderID))
		assert.Equal(t, "Order approved. You can now view each other's profiles.", httptestutil.MessageText(res))
		data := httptestutil.Data(t, res)
		assert.Equal(t, true, data["isApproved"])
		assert.Equal(t, float64(bob.id), data["approvedBy"])

		assert.Contains(t, notificationTexts(t, bob),
			fmt.Sprintf("You approved %s's order for 5000 satoshis (0.00005 BTC).", ali.username))
		assert.Contains(t, notificationTexts(t, ali),
			fmt.Sprintf("%s approved your order for 5000 satoshis (0.00005 BTC).", bob.username))
	})

	t.Run("reject second approval", func(t *testing.T) {
		carol := createTrader(t)
		res := h.AssertResponseNotOkWithCode(t, approve(carol, orderID), http.StatusConflict)
		assert.Equal(t, apierr.ErrAlreadyApproved.Code(), res.ErrorField.Code)
	})

	t.Run("reject unknown order", func(t *testing.T) {
		res := h.AssertResponseNotOkWithCode(t, approve(bob, 1000000), http.StatusNotFound)
		assert.Equal(t, apierr.ErrOrderNotFound.Code(), res.ErrorField.Code)
	})
}

func TestHome(t *testing.T) {
	t.Parallel()
	u := createTrader(t)
	orderID := placeOrder(t, u, "sell", 1000)

	req := httptestutil.GetAuthRequest(t, httptestutil.AuthRequestArgs{
		AccessToken: u.token, Path: "/home", Method: "GET",
	})
	res := h.AssertResponseOkWithJson(t, req)
	data := httptestutil.Data(t, res)

	user := data["user"].(map[string]interface{})
	assert.Equal(t, u.username, user["username"])

	var ids []float64
	for _, o := range data["orders"].([]interface{}) {
		ids = append(ids, o.(map[string]interface{})["id"].(float64))
	}
	assert.Contains(t, ids, float64(orderID), "order board is public and includes own orders")

	feed := data["notifications"].([]interface{})
	require.Len(t, feed, 1)
	assert.Equal(t, "Sell order for 1000 satoshis (0.00001 BTC) placed.",
		feed[0].(map[string]interface{})["message"])
}

func TestGetOrders(t *testing.T) {
	t.Parallel()
	u := createTrader(t)
	first := placeOrder(t, u, "buy", 1000)
	second := placeOrder(t, u, "buy", 2000)

	req := httptestutil.GetAuthRequest(t, httptestutil.AuthRequestArgs{
		AccessToken: u.token, Path: "/orders", Method: "GET",
	})
	res := h.AssertResponseOkWithJson(t, req)

	var ids []int
	for _, o := range httptestutil.DataList(t, res) {
		ids = append(ids, int(o.(map[string]interface{})["id"].(float64)))
	}
	firstIndex, secondIndex := -1, -1
	for i, id := range ids {
		switch id {
		case first:
			firstIndex = i
		case second:
			secondIndex = i
		}
	}
	require.NotEqual(t, -1, firstIndex)
	require.NotEqual(t, -1, secondIndex)
	assert.Less(t, secondIndex, firstIndex, "newest orders come first")
}
