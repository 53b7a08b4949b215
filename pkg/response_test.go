package pkg

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteResponseBytes(t *testing.T) {
	w := httptest.NewRecorder()
	testJson := `{"status":"ok"}`

	WriteResponseBytes(w, ContentType.JSON, []byte(testJson), http.StatusCreated)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, ContentType.JSON, w.Header().Get("Content-Type"))
	assert.Equal(t, testJson, w.Body.String())
}

func TestWriteResponseBytesOK(t *testing.T) {
	w := httptest.NewRecorder()
	testJson := `{"status":"ok"}`

	WriteResponseBytesOK(w, ContentType.JSON, []byte(testJson))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ContentType.JSON, w.Header().Get("Content-Type"))
	assert.Equal(t, testJson, w.Body.String())
}

func TestWriteJSONResponseOK(t *testing.T) {
	w := httptest.NewRecorder()
	testJson := `{"weight":71.4}`

	WriteJSONResponseOK(w, testJson)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ContentType.JSON, w.Header().Get("Content-Type"))
	assert.Equal(t, testJson, w.Body.String())
}

func TestWriteTextResponseOK(t *testing.T) {
	w := httptest.NewRecorder()

	WriteTextResponseOK(w, "plain message")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ContentType.Text, w.Header().Get("Content-Type"))
	assert.Equal(t, "plain message", w.Body.String())
}
