// Package main provides a CLI tool for validating findash server endpoints.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"
)

type endpoint struct {
	path        string
	method      string
	contentType string
	contains    []string
}

var endpoints = []endpoint{
	// API
	{path: "/api/health", method: "GET", contentType: "application/json", contains: []string{`"status":"ok"`}},
	{path: "/api/version", method: "GET", contentType: "application/json", contains: []string{`"version"`}},
	{path: "/session", method: "GET", contentType: "application/json", contains: []string{`"authenticated"`}},

	// Dashboard
	{path: "/dashboard/filters", method: "GET", contentType: "application/json", contains: []string{`"months"`}},
	{path: "/dashboard/summary", method: "GET", contentType: "application/json", contains: []string{"Ingresos", "Gastos", "Balance Neto"}},
	{path: "/dashboard/charts/data/monthly", method: "GET", contentType: "application/json", contains: nil},
	{path: "/dashboard/charts/data/category", method: "GET", contentType: "application/json", contains: nil},
	{path: "/dashboard/transactions", method: "GET", contentType: "application/json", contains: []string{`"rows"`}},
	{path: "/dashboard/transactions?format=text", method: "GET", contentType: "text/plain", contains: []string{"Fecha", "movimientos"}},
	{path: "/dashboard/preferences", method: "GET", contentType: "application/json", contains: nil},

	// Explorer
	{path: "/explorer/transactions", method: "GET", contentType: "application/json", contains: []string{`"transactions"`}},
	{path: "/explorer/files", method: "GET", contentType: "application/json", contains: nil},
}

type result struct {
	endpoint endpoint
	status   int
	duration time.Duration
	err      error
	body     string
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Base URL of the server to validate")
	verbose := flag.Bool("v", false, "Verbose output")
	timeout := flag.Int("timeout", 10, "Request timeout in seconds")
	password := flag.String("password", os.Getenv("FINDASH_PASSWORD"), "Dashboard password, when the server has the gate enabled")
	flag.Parse()

	jar, err := cookiejar.New(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cookie jar: %v\n", err)
		os.Exit(1)
	}
	client := &http.Client{
		Jar:     jar,
		Timeout: time.Duration(*timeout) * time.Second,
	}

	if *password != "" {
		if err := login(client, *baseURL, *password); err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Validating server at %s\n", *baseURL)
	fmt.Printf("Testing %d endpoints...\n\n", len(endpoints))

	var passed, failed int
	var results []result

	for _, ep := range endpoints {
		r := validateEndpoint(client, *baseURL, ep, *verbose)
		results = append(results, r)

		if r.err != nil {
			failed++
			fmt.Printf("FAIL %s %s\n", ep.method, ep.path)
			fmt.Printf("     Error: %v\n", r.err)
		} else if r.status != http.StatusOK {
			failed++
			fmt.Printf("FAIL %s %s\n", ep.method, ep.path)
			fmt.Printf("     Status: %d (expected 200)\n", r.status)
		} else {
			passed++
			if *verbose {
				fmt.Printf("PASS %s %s (%v)\n", ep.method, ep.path, r.duration)
			}
		}
	}

	fmt.Printf("\n========================================\n")
	fmt.Printf("Results: %d passed, %d failed\n", passed, failed)

	if failed > 0 {
		os.Exit(1)
	}
}

func validateEndpoint(client *http.Client, baseURL string, ep endpoint, verbose bool) result {
	start := time.Now()

	req, err := http.NewRequest(ep.method, baseURL+ep.path, nil)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("failed to read body: %w", err)}
	}

	duration := time.Since(start)

	r := result{
		endpoint: ep,
		status:   resp.StatusCode,
		duration: duration,
		body:     string(body),
	}

	// Validate content type
	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, ep.contentType) {
		r.err = fmt.Errorf("wrong content type: got %q, expected %q", ct, ep.contentType)
		return r
	}

	// Validate JSON if expected
	if ep.contentType == "application/json" {
		var js interface{}
		if err := json.Unmarshal(body, &js); err != nil {
			r.err = fmt.Errorf("invalid JSON: %w", err)
			return r
		}
	}

	// Validate required content
	for _, needle := range ep.contains {
		if !strings.Contains(string(body), needle) {
			r.err = fmt.Errorf("missing expected content: %q", needle)
			return r
		}
	}

	return r
}

// login opens a session so the protected endpoints can be checked
func login(client *http.Client, baseURL, password string) error {
	resp, err := client.PostForm(baseURL+"/login", url.Values{"password": {password}})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
