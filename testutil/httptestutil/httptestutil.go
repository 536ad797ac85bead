package httptestutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/satswap/satswap/api/httptypes"
	"github.com/satswap/satswap/testutil"
)

// Server is something that can serve HTTP requests
type Server interface {
	ServeHTTP(response http.ResponseWriter, request *http.Request)
}

// TestHarness is a structure that allows us to execute tests that need
// HTTP serving capabilities
type TestHarness struct {
	server Server
}

func NewTestHarness(server Server) TestHarness {
	return TestHarness{server: server}
}

// Checks if the given string is valid JSON
func isJSONString(s string) bool {
	var js interface{}
	err := json.Unmarshal([]byte(s), &js)
	return err == nil
}

// CreateUser registers a user through the API
func (harness *TestHarness) CreateUser(t testing.TB, username, password string) map[string]interface{} {
	t.Helper()
	if password == "" {
		testutil.FatalMsg(t, "You forgot to set the password!")
		return nil
	}

	if username == "" {
		testutil.FatalMsg(t, "You forgot to set the username!")
		return nil
	}

	createUserRequest := GetRequest(t, RequestArgs{
		Path:   "/users",
		Method: "POST",
		Body: fmt.Sprintf(`{
			"username": %q,
			"password": %q
		}`, username, password),
	})

	return harness.AssertResponseOkWithJson(t, createUserRequest)
}

type AuthRequestArgs struct {
	AccessToken string
	Path        string
	Method      string
	Body        string
}

// GetAuthRequest returns a HTTP request that carries a proper auth header
// and an optional JSON body
func GetAuthRequest(t testing.TB, args AuthRequestArgs) *http.Request {
	t.Helper()
	if args.AccessToken == "" {
		testutil.FatalMsg(t, "You forgot to set AccessToken")
	}
	req := GetRequest(t, RequestArgs{Path: args.Path,
		Method: args.Method, Body: args.Body})
	req.Header.Set("Authorization", args.AccessToken)
	return req
}

type RequestArgs struct {
	Path   string
	Method string
	Body   string
}

// GetRequest returns a HTTP request with an optional JSON body
func GetRequest(t testing.TB, args RequestArgs) *http.Request {
	t.Helper()
	if args.Path == "" {
		testutil.FatalMsg(t, "You forgot to set Path")
	}
	if args.Method == "" {
		testutil.FatalMsg(t, "You forgot to set Method")
	}

	body := &bytes.Buffer{}
	if args.Body != "" {
		if !isJSONString(args.Body) {
			testutil.FatalMsgf(t, "Body was not valid JSON: %s", args.Body)
		}
		body = bytes.NewBufferString(args.Body)
	}

	req := httptest.NewRequest(args.Method, args.Path, body)
	if args.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func extractMethodAndPath(req *http.Request) string {
	return req.Method + " " + req.URL.Path
}

func (harness *TestHarness) serve(request *http.Request) *httptest.ResponseRecorder {
	response := httptest.NewRecorder()
	harness.server.ServeHTTP(response, request)
	return response
}

// AssertResponseNotOk performs the given request, and checks that it failed
// with a well formed error response. It returns the response and the parsed
// error.
func (harness *TestHarness) AssertResponseNotOk(t testing.TB, request *http.Request) (*httptest.ResponseRecorder, httptypes.StandardErrorResponse) {
	t.Helper()
	response := harness.serve(request)
	if response.Code < 300 {
		testutil.FatalMsgf(t, "Got success code (%d) on path %s", response.Code, extractMethodAndPath(request))
		return response, httptypes.StandardErrorResponse{}
	}

	var parsed httptypes.StandardErrorResponse
	if err := json.Unmarshal(response.Body.Bytes(), &parsed); err != nil {
		testutil.FatalMsgf(t, "Could not parse error response: %v. Body: %s", err, response.Body.String())
		return response, parsed
	}

	testutil.AssertMsgf(t, parsed.ErrorField.Code != "",
		"error response on path %s had no code: %s", extractMethodAndPath(request), response.Body.String())
	testutil.AssertMsgf(t, parsed.Message.Level != "" && parsed.Message.Level != httptypes.LevelSuccess,
		"error response on path %s had bad message level %q", extractMethodAndPath(request), parsed.Message.Level)
	return response, parsed
}

// AssertResponseNotOkWithCode checks that the given request results in the
// given HTTP status code. It returns the parsed error response.
func (harness *TestHarness) AssertResponseNotOkWithCode(t testing.TB, request *http.Request, code int) httptypes.StandardErrorResponse {
	t.Helper()
	testutil.AssertMsgf(t, code >= 100 && code < 600, "Given code (%d) is not a valid HTTP code", code)

	response, parsed := harness.AssertResponseNotOk(t, request)
	testutil.AssertMsgf(t, response.Code == code,
		"Expected code (%d) does not match with found code (%d). Body: %s", code, response.Code, response.Body.String())
	return parsed
}

// AssertResponseOk performs the given request against the API. Asserts that
// the response completed successfully, and returns it.
func (harness *TestHarness) AssertResponseOk(t testing.TB, request *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	bodyBytes := []byte{}
	if request.Body != nil {
		var err error
		// read the body bytes for potential error messages later
		bodyBytes, err = io.ReadAll(request.Body)
		if err != nil {
			testutil.FatalMsgf(t, "Could not read body: %v", err)
		}
		// restore the original buffer so it can be read later
		request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	}

	response := harness.serve(request)
	if response.Code != http.StatusOK {
		testutil.FatalMsgf(t, "Got failure code (%d) on path %s. Request: %s Response: %s",
			response.Code, extractMethodAndPath(request), string(bodyBytes), response.Body.String())
	}

	return response
}

// AssertResponseOkWithJson first performs AssertResponseOk, then asserts
// that the body of the response can be parsed as a JSON object without an
// error field, and then returns the parsed JSON
func (harness *TestHarness) AssertResponseOkWithJson(t testing.TB, request *http.Request) map[string]interface{} {
	t.Helper()
	response := harness.AssertResponseOk(t, request)

	var destination map[string]interface{}
	if err := json.Unmarshal(response.Body.Bytes(), &destination); err != nil {
		testutil.FatalMsgf(t, "%+v. Body: %s ", err, response.Body.String())
		return nil
	}
	if _, ok := destination["error"]; ok {
		testutil.FatalMsgf(t, "Successful response on path %s had an error field: %s",
			extractMethodAndPath(request), response.Body.String())
	}
	return destination
}

// Data extracts the data object of a successful response
func Data(t testing.TB, response map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := response["data"].(map[string]interface{})
	if !ok {
		testutil.FatalMsgf(t, "Response (%+v) did not have a data object", response)
	}
	return data
}

// DataList extracts the data list of a successful response
func DataList(t testing.TB, response map[string]interface{}) []interface{} {
	t.Helper()
	data, ok := response["data"].([]interface{})
	if !ok {
		testutil.FatalMsgf(t, "Response (%+v) did not have a data list", response)
	}
	return data
}

// MessageText is the human readable text of the given response
func MessageText(response map[string]interface{}) string {
	message, _ := response["message"].(map[string]interface{})
	text, _ := message["text"].(string)
	return text
}

// Login logs in with the given credentials. Returns the access token for
// this session.
func (harness *TestHarness) Login(t testing.TB, username, password string) string {
	t.Helper()
	loginUserReq := GetRequest(t, RequestArgs{
		Path:   "/login",
		Method: "POST",
		Body: fmt.Sprintf(`{
			"username": %q,
			"password": %q
		}`, username, password),
	})

	jsonRes := harness.AssertResponseOkWithJson(t, loginUserReq)
	token, ok := Data(t, jsonRes)["accessToken"].(string)
	if !ok {
		testutil.FatalMsgf(t, "Returned JSON (%+v) did not have string property 'accessToken'. Path: %s",
			jsonRes, extractMethodAndPath(loginUserReq))
	}
	return token
}

// CreateAndLoginUser creates and logs in a user with the given username and
// password. Returns the access token for this session.
func (harness *TestHarness) CreateAndLoginUser(t testing.TB, username, password string) string {
	t.Helper()
	_ = harness.CreateUser(t, username, password)
	return harness.Login(t, username, password)
}
