package session

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Cookies is the session-credential set produced by a prior login and
// consumed by the fetch layer. The file on disk is a flat JSON object of
// cookie name/value pairs.
type Cookies map[string]string

// Load reads the cookies file. A missing file means there is no usable
// session and the operator has to log in first.
func Load(path string) (Cookies, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("unable to find cookies file %s, please run `safaridl login` first", path)
		}
		return nil, fmt.Errorf("failed to read cookies file: %w", err)
	}

	var c Cookies
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to parse cookies file: %w", err)
	}
	if len(c) == 0 {
		return nil, fmt.Errorf("cookies file %s is empty, please run `safaridl login` first", path)
	}
	return c, nil
}

// Save persists the session for later runs.
func Save(path string, c Cookies) error {
	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}
	if err := os.WriteFile(path, raw, 0600); err != nil {
		return fmt.Errorf("failed to write cookies file: %w", err)
	}
	return nil
}

// Remove drops an expired session so the next run forces a fresh login.
func Remove(path string) {
	_ = os.Remove(path)
}

// Header renders the set as a Cookie header value. Order is fixed so the
// header is stable between requests.
func (c Cookies) Header() string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s=%s; ", name, c[name])
	}
	return strings.TrimSuffix(b.String(), " ")
}
