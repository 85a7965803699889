// File: internal/accounts/accounts.go
// Package accounts handles ingestion of account credential batches from CSV
// files and the result CSVs written after a batch completes.
package accounts

import (
	"encoding/csv"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Credential is the immutable input for one automation run.
type Credential struct {
	Email    string
	Password string
	Proxy    Proxy
	OTPSeed  string
}

// Proxy holds the upstream HTTP proxy endpoint and its credentials.
type Proxy struct {
	Host     string
	Port     string
	Username string
	Password string
}

// IsZero reports whether no proxy was configured for the account.
func (p Proxy) IsZero() bool {
	return p.Host == ""
}

// ServerURL returns the value for the browser's --proxy-server flag.
func (p Proxy) ServerURL() string {
	return fmt.Sprintf("http://%s:%s", p.Host, p.Port)
}

// ParseProxy parses the "ip:port:user:pass" format used in account CSVs.
// An empty string yields a zero Proxy (direct connection).
func ParseProxy(s string) (Proxy, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Proxy{}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return Proxy{}, fmt.Errorf("proxy string must have 4 colon-separated fields, got %d", len(parts))
	}
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	if parts[0] == "" || parts[1] == "" {
		return Proxy{}, fmt.Errorf("proxy host and port must not be empty")
	}
	if port, err := strconv.Atoi(parts[1]); err != nil || port < 1 || port > 65535 {
		return Proxy{}, fmt.Errorf("invalid proxy port %q", parts[1])
	}
	if _, err := url.Parse("http://" + parts[0] + ":" + parts[1]); err != nil {
		return Proxy{}, fmt.Errorf("invalid proxy endpoint: %w", err)
	}

	return Proxy{
		Host:     parts[0],
		Port:     parts[1],
		Username: parts[2],
		Password: parts[3],
	}, nil
}

// csv column names, matching the batch files the original operators maintain.
const (
	colEmail    = "email"
	colPassword = "password"
	colProxy    = "proxy_str"
	colOTPSeed  = "twofa"
)

// ReadCredentials loads a header-driven CSV of account credentials. Keys and
// values are whitespace-trimmed; rows with an empty email are skipped.
func ReadCredentials(path string) ([]Credential, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open credentials file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("credentials file %q is empty", path)
	}

	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{colEmail, colPassword} {
		if _, ok := header[required]; !ok {
			return nil, fmt.Errorf("credentials file is missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := header[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	creds := make([]Credential, 0, len(records)-1)
	for line, row := range records[1:] {
		email := field(row, colEmail)
		if email == "" {
			continue
		}

		proxy, err := ParseProxy(field(row, colProxy))
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", line+2, email, err)
		}

		creds = append(creds, Credential{
			Email:    email,
			Password: field(row, colPassword),
			Proxy:    proxy,
			OTPSeed:  field(row, colOTPSeed),
		})
	}

	return creds, nil
}

// ResultRow is the per-account outcome appended to the success/failure CSVs.
type ResultRow struct {
	Email string
	Error string
}

// AppendResults appends rows to a result CSV, writing the header when the file
// is created. The parent directory is created if needed.
func AppendResults(path string, rows []ResultRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}

	info, statErr := os.Stat(path)
	writeHeader := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open results file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write([]string{"email", "error"}); err != nil {
			return err
		}
	}
	for _, row := range rows {
		if err := w.Write([]string{row.Email, row.Error}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteRemaining writes a timestamped copy of the batch containing only the
// accounts that did not succeed, so a re-run picks up where the batch left off.
// Returns the path of the file written.
func WriteRemaining(originalPath string, creds []Credential, succeeded map[string]bool) (string, error) {
	stamp := time.Now().Format("20060102150405")
	ext := filepath.Ext(originalPath)
	newPath := strings.TrimSuffix(originalPath, ext) + "_" + stamp + ext

	f, err := os.Create(newPath)
	if err != nil {
		return "", fmt.Errorf("failed to create remaining-accounts file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{colEmail, colPassword, colProxy, colOTPSeed}); err != nil {
		return "", err
	}
	for _, c := range creds {
		if succeeded[c.Email] {
			continue
		}
		proxyStr := ""
		if !c.Proxy.IsZero() {
			proxyStr = strings.Join([]string{c.Proxy.Host, c.Proxy.Port, c.Proxy.Username, c.Proxy.Password}, ":")
		}
		if err := w.Write([]string{c.Email, c.Password, proxyStr, c.OTPSeed}); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return newPath, nil
}
