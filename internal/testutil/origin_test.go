package testutil

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrigin(t *testing.T) {
	o := NewOrigin()
	o.SetResponse("/fail", NewServerErrorResponse())
	srv := Server(t, o)

	resp, err := http.Get(srv.URL + "/anything")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
	assert.Equal(t, `"test-etag-123"`, resp.Header.Get("ETag"))

	resp, err = http.Get(srv.URL + "/fail")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	assert.Equal(t, 1, o.Calls("/anything"))
	assert.Equal(t, 2, o.Total())

	o.Reset()
	assert.Zero(t, o.Total())
	assert.Zero(t, o.Calls("/fail"))
}
