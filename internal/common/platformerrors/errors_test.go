package platformerrors

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFromError(t *testing.T) {
	tests := map[string]struct {
		err  error
		want int
	}{
		"ErrNotFound":                     {&ErrNotFound{}, http.StatusNotFound},
		"ErrInvalidArgument":              {&ErrInvalidArgument{}, http.StatusBadRequest},
		"ErrHttp":                         {&ErrHttp{StatusCode: http.StatusConflict}, http.StatusConflict},
		"pkg.Error => ErrNotFound":        {errors.WithMessage(&ErrNotFound{}, "foo"), http.StatusNotFound},
		"pkg.Error => ErrInvalidArgument": {errors.WithMessage(&ErrInvalidArgument{}, "foo"), http.StatusBadRequest},
		"pkg.Error":                       {errors.New("foo"), http.StatusInternalServerError},
		"nil":                             {nil, http.StatusOK},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusFromError(tc.err))
		})
	}
}

func newResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request: &http.Request{
			Method: http.MethodGet,
			URL:    &url.URL{Path: "/onlineEndpoints/taxi"},
		},
	}
}

func TestFromResponse_NotFound(t *testing.T) {
	err := FromResponse(newResponse(http.StatusNotFound, `{"error":{"code":"ResourceNotFound","message":"gone"}}`), "endpoint", "taxi")
	require.True(t, IsNotFound(err))
	assert.Equal(t, `resource "taxi" of type "endpoint" does not exist; gone`, errors.Cause(err).Error())
}

func TestFromResponse_Http(t *testing.T) {
	err := FromResponse(newResponse(http.StatusConflict, `{"error":{"code":"Conflict","message":"busy"}}`), "endpoint", "taxi")
	var e *ErrHttp
	require.True(t, errors.As(err, &e))
	assert.Equal(t, http.StatusConflict, e.StatusCode)
	assert.Equal(t, "Conflict", e.Code)
	assert.Equal(t, "busy", e.Message)
	assert.False(t, IsNotFound(err))
}

func TestFromResponse_UnstructuredBody(t *testing.T) {
	err := FromResponse(newResponse(http.StatusBadGateway, "upstream failure"), "", "")
	var e *ErrHttp
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "upstream failure", e.Message)
	assert.Contains(t, e.Error(), "GET /onlineEndpoints/taxi returned status 502")
}

func TestErrInvalidArgument_Error(t *testing.T) {
	assert.Equal(t, `value 0 is invalid for field "retain-versions"`, (&ErrInvalidArgument{Name: "retain-versions", Value: 0}).Error())
	assert.Equal(t, `value 0 is invalid for field "retain-versions"; must be at least 1`,
		(&ErrInvalidArgument{Name: "retain-versions", Value: 0, Message: "must be at least 1"}).Error())
}
