package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

const (
	gusSandboxURL = "https://wyszukiwarkaregontest.stat.gov.pl/wsBIR/UslugaBIRzewnPubl.svc"
	gusSandboxKey = "abcde12345abcde12345"

	gusLoginAction  = "http://CIS/BIR/PUBL/2014/07/IUslugaBIRzewnPubl/Zaloguj"
	gusSearchAction = "http://CIS/BIR/PUBL/2014/07/IUslugaBIRzewnPubl/DaneSzukajPodmioty"

	gusSessionTTL = 50 * time.Minute
)

// GUSClient queries the REGON BIR1 SOAP service. Sessions are opened with
// Zaloguj and the returned SID is cached until it expires.
type GUSClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *zap.Logger
	now        func() time.Time

	mu         sync.Mutex
	sid        string
	sidExpires time.Time
}

// NewGUSClient creates a REGON client. An empty apiKey falls back to the
// public sandbox service.
func NewGUSClient(apiKey string, logger *zap.Logger) *GUSClient {
	baseURL := gusSandboxURL
	if apiKey == "" {
		apiKey = gusSandboxKey
	}
	return &GUSClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logger,
		now:        time.Now,
	}
}

// NewGUSClientWithBaseURL creates a client against a custom endpoint, used
// by tests.
func NewGUSClientWithBaseURL(baseURL, apiKey string, logger *zap.Logger) *GUSClient {
	c := NewGUSClient(apiKey, logger)
	c.baseURL = baseURL
	return c
}

// Find looks a NIP up in REGON. A NIP absent from the registry yields a nil
// CompanyData with no error.
func (c *GUSClient) Find(ctx context.Context, nip string) (*CompanyData, error) {
	if !ValidNIP(nip) {
		return nil, fmt.Errorf("invalid nip %q", nip)
	}

	sid, err := c.session(ctx)
	if err != nil {
		return nil, err
	}

	envelope := buildEnvelope(gusSearchAction, c.baseURL, searchBody(nip))
	raw, err := c.call(ctx, gusSearchAction, sid, envelope)
	if err != nil {
		return nil, err
	}

	result, err := extractElementText(raw, "DaneSzukajPodmiotyResult")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(result) == "" {
		return nil, nil
	}
	return parseSearchResult(result)
}

// session returns a cached SID or logs in for a fresh one.
func (c *GUSClient) session(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sid != "" && c.now().Before(c.sidExpires) {
		return c.sid, nil
	}

	envelope := buildEnvelope(gusLoginAction, c.baseURL, loginBody(c.apiKey))
	raw, err := c.call(ctx, gusLoginAction, "", envelope)
	if err != nil {
		return "", fmt.Errorf("gus login: %w", err)
	}

	sid, err := extractElementText(raw, "ZalogujResult")
	if err != nil {
		return "", fmt.Errorf("gus login: %w", err)
	}
	sid = strings.TrimSpace(sid)
	if sid == "" {
		return "", fmt.Errorf("gus login rejected, empty sid")
	}

	c.sid = sid
	c.sidExpires = c.now().Add(gusSessionTTL)
	c.logger.Debug("gus session opened")
	return sid, nil
}

func (c *GUSClient) call(ctx context.Context, action, sid, envelope string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(envelope))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/soap+xml;charset=UTF-8")
	if sid != "" {
		req.Header.Set("sid", sid)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call gus: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read gus response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gus returned status %d", resp.StatusCode)
	}
	return string(body), nil
}

// buildEnvelope wraps a body fragment in a SOAP 1.2 envelope with WS-Addressing
// headers the BIR1 service requires.
func buildEnvelope(action, to, body string) string {
	doc := etree.NewDocument()
	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", "http://www.w3.org/2003/05/soap-envelope")
	env.CreateAttr("xmlns:wsa", "http://www.w3.org/2005/08/addressing")

	header := env.CreateElement("soap:Header")
	header.CreateElement("wsa:Action").SetText(action)
	header.CreateElement("wsa:To").SetText(to)

	bodyElem := env.CreateElement("soap:Body")
	fragment := etree.NewDocument()
	if err := fragment.ReadFromString(body); err == nil && fragment.Root() != nil {
		bodyElem.AddChild(fragment.Root().Copy())
	}

	out, _ := doc.WriteToString()
	return out
}

func loginBody(apiKey string) string {
	doc := etree.NewDocument()
	login := doc.CreateElement("ns:Zaloguj")
	login.CreateAttr("xmlns:ns", "http://CIS/BIR/PUBL/2014/07")
	login.CreateElement("ns:pKluczUzytkownika").SetText(apiKey)
	out, _ := doc.WriteToString()
	return out
}

func searchBody(nip string) string {
	doc := etree.NewDocument()
	search := doc.CreateElement("ns:DaneSzukajPodmioty")
	search.CreateAttr("xmlns:ns", "http://CIS/BIR/PUBL/2014/07")
	search.CreateAttr("xmlns:dat", "http://CIS/BIR/PUBL/2014/07/DataContract")
	params := search.CreateElement("ns:pParametryWyszukiwania")
	params.CreateElement("dat:Nip").SetText(nip)
	out, _ := doc.WriteToString()
	return out
}

// extractElementText finds the first element with the given local name in a
// SOAP response. Responses arrive as MTOM multipart, so the XML envelope is
// carved out of the raw payload before parsing.
func extractElementText(raw, localName string) (string, error) {
	start := strings.Index(raw, "<s:Envelope")
	if start < 0 {
		start = strings.Index(raw, "<soap:Envelope")
	}
	if start < 0 {
		start = strings.Index(raw, "<Envelope")
	}
	if start < 0 {
		return "", fmt.Errorf("no soap envelope in gus response")
	}
	end := strings.LastIndex(raw, "Envelope>")
	if end < 0 {
		return "", fmt.Errorf("truncated soap envelope in gus response")
	}
	xml := raw[start : end+len("Envelope>")]

	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return "", fmt.Errorf("parse gus envelope: %w", err)
	}
	for _, elem := range doc.FindElements("//*") {
		if elem.Tag == localName {
			return elem.Text(), nil
		}
	}
	return "", fmt.Errorf("element %s missing from gus response", localName)
}

// parseSearchResult decodes the inner XML document that DaneSzukajPodmioty
// returns as an escaped string.
func parseSearchResult(result string) (*CompanyData, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(result); err != nil {
		return nil, fmt.Errorf("parse gus search result: %w", err)
	}

	dane := doc.FindElement("//dane")
	if dane == nil {
		return nil, nil
	}
	text := func(tag string) string {
		if elem := dane.FindElement(tag); elem != nil {
			return strings.TrimSpace(elem.Text())
		}
		return ""
	}

	street := text("Ulica")
	number := text("NrNieruchomosci")
	if local := text("NrLokalu"); local != "" {
		number = number + "/" + local
	}
	addrLine := strings.TrimSpace(street + " " + number)
	city := strings.TrimSpace(text("KodPocztowy") + " " + text("Miejscowosc"))
	address := addrLine
	if city != "" {
		if address != "" {
			address += ", "
		}
		address += city
	}

	return &CompanyData{
		Name:    text("Nazwa"),
		Address: address,
	}, nil
}
