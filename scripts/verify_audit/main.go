package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type target struct {
	Hash          string `json:"hash"`
	CertificateNo string `json:"certificate_no"`
	ExpectValid   bool   `json:"expect_valid"`
}

type config struct {
	Targets []target `json:"targets"`
}

type verification struct {
	CertificateNo string `json:"certificate_no"`
	StudentName   string `json:"student_name"`
	Valid         bool   `json:"valid"`
}

type envelope struct {
	Data verification `json:"data"`
}

type result struct {
	Target   target
	Status   int
	Got      verification
	Match    bool
	Error    error
	Duration time.Duration
}

func main() {
	var (
		baseURL     string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&baseURL, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "verify_audit", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		results    []result
		mismatches int
	)

	for _, t := range targets {
		res := checkTarget(client, baseURL, t)
		if res.Error != nil || !res.Match {
			mismatches++
		}
		results = append(results, res)
	}

	printReport(results)

	fmt.Printf("Mismatches: %d of %d\n", mismatches, len(targets))
	if mismatches > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func checkTarget(client *http.Client, base string, tgt target) result {
	res := result{Target: tgt}

	url := strings.TrimRight(base, "/") + "/verify/certificates/" + tgt.Hash
	start := time.Now()
	resp, err := client.Get(url)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = fmt.Errorf("request failed: %w", err)
		return res
	}
	defer resp.Body.Close()

	res.Status = resp.StatusCode

	if !tgt.ExpectValid {
		res.Match = resp.StatusCode == http.StatusNotFound
		return res
	}
	if resp.StatusCode != http.StatusOK {
		return res
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Error = fmt.Errorf("read body: %w", err)
		return res
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		res.Error = fmt.Errorf("decode body: %w", err)
		return res
	}
	res.Got = env.Data
	res.Match = env.Data.Valid && env.Data.CertificateNo == tgt.CertificateNo

	return res
}

func printReport(results []result) {
	fmt.Println("Verification Audit Report")
	fmt.Println("=========================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.Match {
			status = "MISMATCH"
		}
		fmt.Printf("[%s] %s\n", status, res.Target.Hash)
		fmt.Printf("  Status: %d (%s)\n", res.Status, res.Duration)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
		} else if res.Target.ExpectValid {
			fmt.Printf("  Expected: %s | Got: %s | Valid: %t\n", res.Target.CertificateNo, res.Got.CertificateNo, res.Got.Valid)
		}
	}
}
