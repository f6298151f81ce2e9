package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type testAndRegisterResponse struct {
	Test struct {
		Success              bool   `json:"success"`
		StatusCode           int    `json:"status_code"`
		LatencyMS            int64  `json:"latency_ms"`
		ErrorMessage         string `json:"error_message"`
		SuggestedThresholdMS int    `json:"suggested_threshold_ms"`
		Recommendation       string `json:"recommendation"`
	} `json:"test"`
	API struct {
		ID                 string `json:"id"`
		ExpectedStatusCode int    `json:"expected_status_code"`
		LatencyThresholdMS int    `json:"latency_threshold_ms"`
	} `json:"api"`
}

func main() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	key := os.Getenv("API_KEY")

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Enter a URL to monitor (e.g., https://api.example.com/health): ")
	raw, _ := reader.ReadString('\n')
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Host == "" {
		fmt.Println("Invalid URL.")
		return
	}

	fmt.Printf("Name [%s]: ", u.Host)
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		name = u.Host
	}

	body, _ := json.Marshal(map[string]string{"name": name, "url": raw})
	req, _ := http.NewRequest(http.MethodPost, api+"/api/monitoring/test-and-register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Println("Error contacting API:", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		fmt.Println("API returned status:", resp.Status, e.Error)
		return
	}

	var out testAndRegisterResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Println("Registered, but the response could not be read:", err)
		return
	}
	if out.Test.Success {
		fmt.Printf("Reachable: HTTP %d in %dms.\n", out.Test.StatusCode, out.Test.LatencyMS)
	} else {
		fmt.Println("Test failed:", out.Test.ErrorMessage)
	}
	fmt.Println(out.Test.Recommendation)
	fmt.Printf("Registered %s (expects %d, threshold %dms). See GET /api/history/%s/checks.\n",
		out.API.ID, out.API.ExpectedStatusCode, out.API.LatencyThresholdMS, out.API.ID)
}
