package httptestutil

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

// recordingT records failures instead of stopping the test
type recordingT struct {
	testing.TB
	failed bool
}

func (r *recordingT) Helper() {}

func (r *recordingT) Fatalf(string, ...interface{}) { r.failed = true }

func (r *recordingT) Errorf(string, ...interface{}) { r.failed = true }

func (r *recordingT) Fail() { r.failed = true }

type fixed struct {
	code int
	body string
}

func (s fixed) ServeHTTP(response http.ResponseWriter, _ *http.Request) {
	response.WriteHeader(s.code)
	if _, err := fmt.Fprint(response, s.body); err != nil {
		panic(err)
	}
}

var (
	goodObject = fixed{code: http.StatusOK, body: `{"message": {"level": "success", "text": "ok"}, "data": {"foo": "bar"}}`}
	badJson    = fixed{code: http.StatusOK, body: `-----`}
	badServer  = fixed{code: http.StatusOK, body: `{"error": "bar"}`}
	badError   = fixed{code: http.StatusUnauthorized, body: `{"there_should": "be stuff here"}`}
	goodError  = fixed{code: http.StatusUnauthorized, body: `{
		"error": {
			"message": "This is an error message.",
			"code": "ERR_WITH_A_CODE",
			"redirect": "/login",
			"fields": []
		},
		"message": {"level": "warning", "text": "This is an error message."}
	}`}
)

func ping(t testing.TB) *http.Request {
	return GetRequest(t, RequestArgs{
		Path:   "/ping",
		Method: "GET",
	})
}

func TestTestHarness_AssertResponseOkWithJson(t *testing.T) {
	t.Run("accept a normal JSON body", func(t *testing.T) {
		h := NewTestHarness(goodObject)
		res := h.AssertResponseOkWithJson(t, ping(t))
		assert.Equal(t, "bar", Data(t, res)["foo"])
		assert.Equal(t, "ok", MessageText(res))
	})

	t.Run(`fail with a JSON body containing "error"`, func(t *testing.T) {
		h := NewTestHarness(badServer)
		testThatShouldFail := &recordingT{TB: t}
		h.AssertResponseOkWithJson(testThatShouldFail, ping(t))
		assert.True(t, testThatShouldFail.failed, "Test didn't fail with bad response")
	})

	t.Run(`fail with invalid JSON`, func(t *testing.T) {
		h := NewTestHarness(badJson)
		testThatShouldFail := &recordingT{TB: t}
		h.AssertResponseOkWithJson(testThatShouldFail, ping(t))
		assert.True(t, testThatShouldFail.failed, "Test didn't fail with bad response")
	})
}

func TestTestHarness_AssertResponseNotOk(t *testing.T) {
	t.Run("accept a good error response", func(t *testing.T) {
		h := NewTestHarness(goodError)
		parsed := h.AssertResponseNotOkWithCode(t, ping(t), http.StatusUnauthorized)
		assert.Equal(t, "ERR_WITH_A_CODE", parsed.ErrorField.Code)
	})

	t.Run("fail with a 200 code", func(t *testing.T) {
		h := NewTestHarness(goodObject)
		testThatShouldFail := &recordingT{TB: t}
		res, _ := h.AssertResponseNotOk(testThatShouldFail, ping(t))
		assert.Equal(t, http.StatusOK, res.Code)
		assert.True(t, testThatShouldFail.failed, "test didn't fail with 200 code")
	})

	t.Run("fail with a error code that doesn't have a correct error response", func(t *testing.T) {
		h := NewTestHarness(badError)
		testThatShouldFail := &recordingT{TB: t}
		res, _ := h.AssertResponseNotOk(testThatShouldFail, ping(t))
		assert.NotEqual(t, http.StatusOK, res.Code)
		assert.True(t, testThatShouldFail.failed, "test didn't fail with bad error message")
	})

	t.Run("fail with the wrong code", func(t *testing.T) {
		h := NewTestHarness(goodError)
		testThatShouldFail := &recordingT{TB: t}
		h.AssertResponseNotOkWithCode(testThatShouldFail, ping(t), http.StatusNotFound)
		assert.True(t, testThatShouldFail.failed)
	})
}

func TestGetRequest(t *testing.T) {
	t.Run("set JSON content type with a body", func(t *testing.T) {
		req := GetRequest(t, RequestArgs{Path: "/orders", Method: "POST", Body: `{"amount": 5000}`})
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	})

	t.Run("reject invalid JSON bodies", func(t *testing.T) {
		testThatShouldFail := &recordingT{TB: t}
		GetRequest(testThatShouldFail, RequestArgs{Path: "/orders", Method: "POST", Body: `{amount`})
		assert.True(t, testThatShouldFail.failed)
	})

	t.Run("set auth header", func(t *testing.T) {
		req := GetAuthRequest(t, AuthRequestArgs{AccessToken: "Bearer foo", Path: "/home", Method: "GET"})
		assert.Equal(t, "Bearer foo", req.Header.Get("Authorization"))
	})
}
