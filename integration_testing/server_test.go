package integration_testing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/yuta66jp/bodymake-dashboard/internal/logstore"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doRequest(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		bodyJson, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(bodyJson)
	}

	req, err := http.NewRequest(method, serverEndpoint+path, reqBody)
	require.NoError(t, err)
	req.Header.Set("Origin", "test")
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	return resp, respBody
}

func TestServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	suite := newSuite(ctx)
	defer suite.cleanup()

	// let the server start listening
	time.Sleep(500 * time.Millisecond)

	t.Run("version", func(t *testing.T) {
		resp, body := doRequest(t, "GET", "/version", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "test-version-info", string(body))
	})

	t.Run("daily log round trip", func(t *testing.T) {
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 30; i++ {
			logDate := start.AddDate(0, 0, i)
			resp, _ := doRequest(t, "POST", "/logstore/log", map[string]any{
				"logDate":  logDate.Format(logstore.DateLayout),
				"weightKg": 80 - 0.2*float64(i),
				"calories": 2000 + float64(i%2)*500,
				"proteinG": 150,
				"fatG":     50,
				"carbsG":   200,
				"note":     gofakeit.Sentence(5),
			})
			require.Equal(t, http.StatusCreated, resp.StatusCode)
		}

		resp, body := doRequest(t, "GET", "/logstore/log/2024-01-05", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var obs logstore.Observation
		require.NoError(t, json.Unmarshal(body, &obs))
		assert.InDelta(t, 79.2, obs.WeightKg, 1e-9)

		// a second write for the same date overwrites, no duplicate row
		resp, _ = doRequest(t, "POST", "/logstore/log", map[string]any{
			"logDate":  "2024-01-05",
			"weightKg": 79.0,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp, body = doRequest(t, "GET", "/logstore/logs", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var observations []logstore.Observation
		require.NoError(t, json.Unmarshal(body, &observations))
		assert.Len(t, observations, 30)

		resp, _ = doRequest(t, "GET", "/logstore/log/1999-01-01", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("dashboard", func(t *testing.T) {
		resp, body := doRequest(t, "GET", "/dashboard", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var dashboard struct {
			Rows []struct {
				Date   string   `json:"date"`
				Weight *float64 `json:"weight"`
			} `json:"rows"`
			KPIs struct {
				TDEE     float64 `json:"tdee"`
				Forecast float64 `json:"forecast"`
			} `json:"kpis"`
		}
		require.NoError(t, json.Unmarshal(body, &dashboard))
		assert.Len(t, dashboard.Rows, 30)
		assert.Positive(t, dashboard.KPIs.TDEE)
	})

	t.Run("food and cart", func(t *testing.T) {
		foodName := gofakeit.Breakfast()
		resp, _ := doRequest(t, "POST", "/logstore/food", map[string]any{
			"name":     foodName,
			"unit":     "100g",
			"calories": 155,
			"proteinG": 13,
			"fatG":     11,
			"carbsG":   1,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp, body := doRequest(t, "POST", "/logstore/cart/total", []map[string]any{
			{"name": foodName, "servings": 2},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var total logstore.CartTotal
		require.NoError(t, json.Unmarshal(body, &total))
		assert.InDelta(t, 310, total.Calories, 1e-9)
	})

	t.Run("settings", func(t *testing.T) {
		resp, body := doRequest(t, "GET", "/logstore/settings", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var settings logstore.Settings
		require.NoError(t, json.Unmarshal(body, &settings))
		assert.Equal(t, "Cut", settings.Phase)

		resp, body = doRequest(t, "PUT", "/logstore/settings", map[string]any{
			"phase":          "Bulk",
			"targetWeightKg": 62.5,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.Unmarshal(body, &settings))
		assert.Equal(t, "Bulk", settings.Phase)
		assert.Equal(t, 62.5, settings.TargetWeightKg)
	})

	t.Run("unknown path", func(t *testing.T) {
		resp, _ := doRequest(t, "GET", fmt.Sprintf("/nope-%d", time.Now().Unix()), nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
