// Package trust loads and evaluates the TrustList: the verified-domain
// regular expressions and verified-user email addresses that Verification
// uses to decide whether an actor is trusted. Loading is grounded on the
// original Python implementation's verification_service/app.py, which reads
// a single top-level YAML key (domains/users) holding a string sequence.
package trust

import (
	"fmt"
	"os"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"
)

type domainsFile struct {
	Domains []string `yaml:"domains"`
}

type usersFile struct {
	Users []string `yaml:"users"`
}

// List holds the compiled trust configuration. It is immutable after Load;
// Reload replaces the internal state atomically so concurrent readers never
// observe a partially updated list.
type List struct {
	mu      sync.RWMutex
	domains []*regexp.Regexp
	users   map[string]struct{}

	domainsPath string
	usersPath   string
}

// Load reads both trust-list files from disk and compiles the domain
// patterns.
func Load(domainsPath, usersPath string) (*List, error) {
	l := &List{domainsPath: domainsPath, usersPath: usersPath}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload re-reads both trust-list files from disk, replacing the compiled
// state. Stages call this in response to an explicit signal (SIGHUP);
// trust lists are otherwise never mutated while the pipeline runs.
func (l *List) Reload() error {
	domains, err := loadDomains(l.domainsPath)
	if err != nil {
		return fmt.Errorf("load verified domains: %w", err)
	}
	users, err := loadUsers(l.usersPath)
	if err != nil {
		return fmt.Errorf("load verified users: %w", err)
	}

	l.mu.Lock()
	l.domains = domains
	l.users = users
	l.mu.Unlock()
	return nil
}

func loadDomains(path string) ([]*regexp.Regexp, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f domainsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	compiled := make([]*regexp.Regexp, 0, len(f.Domains))
	for _, pattern := range f.Domains {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile domain pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func loadUsers(path string) (map[string]struct{}, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f usersFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(f.Users))
	for _, u := range f.Users {
		set[u] = struct{}{}
	}
	return set, nil
}

// DomainVerified reports whether email matches any verified-domain regex.
func (l *List) DomainVerified(email string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, re := range l.domains {
		if re.MatchString(email) {
			return true
		}
	}
	return false
}

// UserVerified reports whether email is an exact member of the verified-user
// set.
func (l *List) UserVerified(email string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.users[email]
	return ok
}

// Trusted implements the trust decision of spec §4.3:
// trusted(email) = (∃ re : re matches email) ∨ (email ∈ verified_user_set).
func (l *List) Trusted(email string) bool {
	if email == "" {
		return false
	}
	return l.DomainVerified(email) || l.UserVerified(email)
}
