// Package main provides a CLI tool for validating daybook server endpoints.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

type endpoint struct {
	path        string
	method      string
	contentType string
	contains    []string
}

// Read-only endpoints; nothing here changes server state
var endpoints = []endpoint{
	// API
	{path: "/api/health", method: "GET", contentType: "application/json", contains: []string{`"status":"ok"`}},
	{path: "/api/version", method: "GET", contentType: "application/json", contains: []string{`"name":"daybook"`}},
	{path: "/storage", method: "GET", contentType: "application/json", contains: []string{`"encryptable"`}},

	// Dashboard
	{path: "/dashboard", method: "GET", contentType: "application/json", contains: []string{`"summary"`, `"cashInOffice"`}},
	{path: "/dashboard?limit=5", method: "GET", contentType: "application/json", contains: []string{`"transactions"`}},
	{path: "/dashboard/export/csv", method: "GET", contentType: "text/csv", contains: []string{"Date,Particulars,Sales,Payment,Type"}},
	{path: "/dashboard/export/xlsx", method: "GET", contentType: "spreadsheetml", contains: nil},

	// Transactions
	{path: "/transactions", method: "GET", contentType: "application/json", contains: []string{`"count"`}},
	{path: "/transactions/particulars", method: "GET", contentType: "application/json", contains: []string{`"particulars"`}},

	// Customers
	{path: "/customers", method: "GET", contentType: "application/json", contains: []string{`"customers"`}},
	{path: "/customers/outstanding", method: "GET", contentType: "application/json", contains: []string{`"customers"`}},

	// Backup
	{path: "/backup", method: "GET", contentType: "application/zip", contains: nil},
}

type result struct {
	endpoint endpoint
	status   int
	duration time.Duration
	err      error
	body     string
}

func main() {
	url := flag.String("url", "http://localhost:8080", "Base URL of the server to validate")
	verbose := flag.Bool("v", false, "Verbose output")
	timeout := flag.Int("timeout", 10, "Request timeout in seconds")
	parallel := flag.Int("parallel", 4, "Number of endpoints checked at once")
	flag.Parse()

	client := &http.Client{
		Timeout: time.Duration(*timeout) * time.Second,
	}

	fmt.Printf("Validating server at %s\n", *url)
	fmt.Printf("Testing %d endpoints...\n\n", len(endpoints))

	results := make([]result, len(endpoints))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(*parallel)
	for i, ep := range endpoints {
		i, ep := i, ep
		g.Go(func() error {
			results[i] = validateEndpoint(ctx, client, *url, ep)
			return nil
		})
	}
	// validateEndpoint reports failures in its result
	_ = g.Wait()

	var passed, failed int
	var slowest result
	for _, r := range results {
		ep := r.endpoint
		switch {
		case r.err != nil:
			failed++
			fmt.Printf("FAIL %s %s\n", ep.method, ep.path)
			fmt.Printf("     Error: %v\n", r.err)
		case r.status != http.StatusOK:
			failed++
			fmt.Printf("FAIL %s %s\n", ep.method, ep.path)
			fmt.Printf("     Status: %d (expected 200)\n", r.status)
			if *verbose {
				fmt.Printf("     Body: %s\n", truncate(r.body, 200))
			}
		default:
			passed++
			if *verbose {
				fmt.Printf("PASS %s %s (%v)\n", ep.method, ep.path, r.duration)
			}
		}
		if r.duration > slowest.duration {
			slowest = r
		}
	}

	fmt.Printf("\n========================================\n")
	fmt.Printf("Results: %d passed, %d failed\n", passed, failed)
	if slowest.duration > 0 {
		fmt.Printf("Slowest: %s %s (%v)\n", slowest.endpoint.method, slowest.endpoint.path, slowest.duration)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func validateEndpoint(ctx context.Context, client *http.Client, baseURL string, ep endpoint) result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, ep.method, baseURL+ep.path, nil)
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

	r := result{
		endpoint: ep,
		status:   resp.StatusCode,
		duration: time.Since(start),
		body:     string(body),
	}
	if r.status != http.StatusOK {
		return r
	}

	// Validate content type
	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, ep.contentType) {
		r.err = fmt.Errorf("wrong content type: got %q, expected %q", ct, ep.contentType)
		return r
	}

	// Validate JSON if expected
	if ep.contentType == "application/json" {
		var js any
		if err := json.Unmarshal(body, &js); err != nil {
			r.err = fmt.Errorf("invalid JSON: %w", err)
			return r
		}
	}

	// Validate required content
	for _, needle := range ep.contains {
		if !strings.Contains(r.body, needle) {
			r.err = fmt.Errorf("missing expected content: %q", needle)
			return r
		}
	}

	return r
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
