// Package registry looks up Polish company data by NIP, first against the
// Ministry of Finance VAT whitelist and then the GUS REGON registry.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"
)

const whitelistBaseURL = "https://wl-api.mf.gov.pl"

var nipPattern = regexp.MustCompile(`^\d{10}$`)

// CompanyData is the subset of registry data the dunning engine stores on a
// contractor. Lookups are best effort; any field may come back empty.
type CompanyData struct {
	Name      string
	Address   string
	VATStatus string
}

// Lookup resolves company data for a NIP.
type Lookup interface {
	Find(ctx context.Context, nip string) (*CompanyData, error)
}

// ValidNIP reports whether the string is a ten digit NIP.
func ValidNIP(nip string) bool {
	return nipPattern.MatchString(nip)
}

// WhitelistClient queries the MF VAT taxpayer whitelist API.
type WhitelistClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
	now        func() time.Time
}

// NewWhitelistClient creates a whitelist client against the public API.
func NewWhitelistClient(logger *zap.Logger) *WhitelistClient {
	return &WhitelistClient{
		httpClient: &http.Client{Timeout: 8 * time.Second},
		baseURL:    whitelistBaseURL,
		logger:     logger,
		now:        time.Now,
	}
}

// NewWhitelistClientWithBaseURL creates a client against a custom endpoint,
// used by tests.
func NewWhitelistClientWithBaseURL(baseURL string, logger *zap.Logger) *WhitelistClient {
	c := NewWhitelistClient(logger)
	c.baseURL = baseURL
	return c
}

type whitelistResponse struct {
	Result struct {
		Subject *struct {
			Name           string `json:"name"`
			StatusVat      string `json:"statusVat"`
			WorkingAddress string `json:"workingAddress"`
			ResidenceAddr  string `json:"residenceAddress"`
		} `json:"subject"`
	} `json:"result"`
}

// Find looks up a NIP on the whitelist. A NIP absent from the register
// yields a nil CompanyData with no error.
func (c *WhitelistClient) Find(ctx context.Context, nip string) (*CompanyData, error) {
	if !ValidNIP(nip) {
		return nil, fmt.Errorf("invalid nip %q", nip)
	}

	url := fmt.Sprintf("%s/api/search/nip/%s?date=%s",
		c.baseURL, nip, c.now().Format("2006-01-02"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query whitelist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whitelist returned status %d", resp.StatusCode)
	}

	var parsed whitelistResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode whitelist response: %w", err)
	}

	subject := parsed.Result.Subject
	if subject == nil {
		return nil, nil
	}

	address := subject.WorkingAddress
	if address == "" {
		address = subject.ResidenceAddr
	}

	return &CompanyData{
		Name:      subject.Name,
		Address:   address,
		VATStatus: subject.StatusVat,
	}, nil
}
