package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Auth0UserInfo represents the user information returned from Auth0's /userinfo endpoint
type Auth0UserInfo struct {
	Sub   string `json:"sub"` // Auth0 user ID
	Email string `json:"email"`
	Name  string `json:"name"`
}

// DisplayName is what operation logs record for this staff member.
func (u *Auth0UserInfo) DisplayName() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	}
	return u.Sub
}

// OperatorResolver turns an authenticated subject into the operator name recorded on writes.
type OperatorResolver interface {
	ResolveOperator(ctx context.Context, subject, accessToken string) string
}

// Auth0Service looks up staff profiles and caches their display names by subject.
type Auth0Service struct {
	domain     string
	httpClient *http.Client
	mu         sync.RWMutex
	names      map[string]string
}

// NewAuth0Service creates a new Auth0 service instance
func NewAuth0Service(domain string) *Auth0Service {
	return &Auth0Service{
		domain: domain,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		names: make(map[string]string),
	}
}

// ResolveOperator returns the cached or fetched display name, or the subject if the lookup fails.
func (s *Auth0Service) ResolveOperator(ctx context.Context, subject, accessToken string) string {
	s.mu.RLock()
	name, ok := s.names[subject]
	s.mu.RUnlock()
	if ok {
		return name
	}

	info, err := s.GetUserInfo(ctx, accessToken)
	if err != nil || info.Sub != subject {
		return subject
	}

	name = info.DisplayName()
	s.mu.Lock()
	s.names[subject] = name
	s.mu.Unlock()
	return name
}

// GetUserInfo fetches user information from Auth0's /userinfo endpoint
func (s *Auth0Service) GetUserInfo(ctx context.Context, accessToken string) (*Auth0UserInfo, error) {
	// A domain with a scheme is used as-is (test servers)
	var url string
	if strings.HasPrefix(s.domain, "http://") || strings.HasPrefix(s.domain, "https://") {
		url = fmt.Sprintf("%s/userinfo", s.domain)
	} else {
		url = fmt.Sprintf("https://%s/userinfo", s.domain)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Add("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call userinfo endpoint: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("userinfo endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var userInfo Auth0UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}

	return &userInfo, nil
}

// SubjectResolver records the token subject itself.
type SubjectResolver struct{}

func (SubjectResolver) ResolveOperator(_ context.Context, subject, _ string) string {
	return subject
}
