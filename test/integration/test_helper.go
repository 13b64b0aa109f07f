package integration

import (
	"net/http"
	"os"
	"testing"
	"time"
)

var baseURL string

func TestMain(m *testing.M) {
	baseURL = os.Getenv("API_BASE_URL")
	if baseURL == "" {
		// No running API to test against; every test skips.
		os.Exit(m.Run())
	}

	// Wait for the API to come up.
	client := &http.Client{Timeout: 2 * time.Second}
	for i := 0; i < 15; i++ {
		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		time.Sleep(2 * time.Second)
	}

	os.Exit(m.Run())
}

func requireAPI(t *testing.T) {
	t.Helper()
	if baseURL == "" {
		t.Skip("API_BASE_URL not set, skipping API integration tests")
	}
}
