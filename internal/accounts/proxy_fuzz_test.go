// File: internal/accounts/proxy_fuzz_test.go
package accounts

import (
	"strconv"
	"strings"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
)

// FuzzParseProxy exercises the proxy string parser with arbitrary input. The
// parser must never panic and must only accept well-formed 4-field endpoints.
func FuzzParseProxy(f *testing.F) {
	f.Add([]byte("10.0.0.1:8080:user:pass"))
	f.Add([]byte("host:0:u:p"))
	f.Add([]byte(":::::"))
	f.Add([]byte(""))

	f.Fuzz(func(t *testing.T, data []byte) {
		fc := fuzz.NewConsumer(data)
		input, err := fc.GetString()
		if err != nil {
			return
		}

		p, err := ParseProxy(input)
		if err != nil {
			return
		}
		if p.IsZero() {
			// Only blank input may yield a zero proxy.
			if strings.TrimSpace(input) != "" {
				t.Fatalf("non-empty input %q parsed to a zero proxy", input)
			}
			return
		}

		port, convErr := strconv.Atoi(p.Port)
		if convErr != nil || port < 1 || port > 65535 {
			t.Fatalf("accepted proxy with invalid port %q from input %q", p.Port, input)
		}
		if p.Host == "" {
			t.Fatalf("accepted proxy with empty host from input %q", input)
		}
		if !strings.HasPrefix(p.ServerURL(), "http://") {
			t.Fatalf("malformed server URL %q", p.ServerURL())
		}
	})
}
