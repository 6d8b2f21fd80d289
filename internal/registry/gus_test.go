package registry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

const gusLoginEnvelope = `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">
<s:Body><ZalogujResponse xmlns="http://CIS/BIR/PUBL/2014/07">
<ZalogujResult>abc123session</ZalogujResult>
</ZalogujResponse></s:Body></s:Envelope>`

const gusSearchEnvelope = `--uuid:frontier
Content-Type: application/xop+xml

<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">
<s:Body><DaneSzukajPodmiotyResponse xmlns="http://CIS/BIR/PUBL/2014/07">
<DaneSzukajPodmiotyResult>&lt;root&gt;&lt;dane&gt;&lt;Nazwa&gt;DELTA SP. Z O.O.&lt;/Nazwa&gt;&lt;Ulica&gt;ul. Polna&lt;/Ulica&gt;&lt;NrNieruchomosci&gt;12&lt;/NrNieruchomosci&gt;&lt;NrLokalu&gt;3&lt;/NrLokalu&gt;&lt;KodPocztowy&gt;60-001&lt;/KodPocztowy&gt;&lt;Miejscowosc&gt;Poznań&lt;/Miejscowosc&gt;&lt;/dane&gt;&lt;/root&gt;</DaneSzukajPodmiotyResult>
</DaneSzukajPodmiotyResponse></s:Body></s:Envelope>
--uuid:frontier--`

func newGUSTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch {
		case strings.Contains(string(body), "Zaloguj"):
			w.Write([]byte(gusLoginEnvelope))
		case strings.Contains(string(body), "DaneSzukajPodmioty"):
			if r.Header.Get("sid") != "abc123session" {
				t.Errorf("search called with sid %q", r.Header.Get("sid"))
			}
			w.Write([]byte(gusSearchEnvelope))
		default:
			t.Errorf("unexpected request body: %s", body)
		}
	}))
}

func TestGUSFindParsesSearchResult(t *testing.T) {
	srv := newGUSTestServer(t)
	defer srv.Close()

	client := NewGUSClientWithBaseURL(srv.URL, "key", zap.NewNop())
	data, err := client.Find(context.Background(), "1234567890")
	if err != nil {
		t.Fatal(err)
	}
	if data == nil {
		t.Fatal("data = nil")
	}
	if data.Name != "DELTA SP. Z O.O." {
		t.Errorf("name = %q", data.Name)
	}
	if data.Address != "ul. Polna 12/3, 60-001 Poznań" {
		t.Errorf("address = %q", data.Address)
	}
}

func TestGUSSessionIsCached(t *testing.T) {
	logins := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "Zaloguj") {
			logins++
			w.Write([]byte(gusLoginEnvelope))
			return
		}
		w.Write([]byte(gusSearchEnvelope))
	}))
	defer srv.Close()

	client := NewGUSClientWithBaseURL(srv.URL, "key", zap.NewNop())
	for i := 0; i < 3; i++ {
		if _, err := client.Find(context.Background(), "1234567890"); err != nil {
			t.Fatal(err)
		}
	}
	if logins != 1 {
		t.Errorf("%d logins for 3 lookups, want 1 cached session", logins)
	}
}

func TestGUSEmptyResultMeansNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "Zaloguj") {
			w.Write([]byte(gusLoginEnvelope))
			return
		}
		w.Write([]byte(`<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">
<s:Body><DaneSzukajPodmiotyResponse xmlns="http://CIS/BIR/PUBL/2014/07">
<DaneSzukajPodmiotyResult></DaneSzukajPodmiotyResult>
</DaneSzukajPodmiotyResponse></s:Body></s:Envelope>`))
	}))
	defer srv.Close()

	client := NewGUSClientWithBaseURL(srv.URL, "key", zap.NewNop())
	data, err := client.Find(context.Background(), "1234567890")
	if err != nil {
		t.Fatal(err)
	}
	if data != nil {
		t.Errorf("data = %+v, want nil", data)
	}
}

func TestGUSDefaultsToSandboxKey(t *testing.T) {
	client := NewGUSClient("", zap.NewNop())
	if client.apiKey != gusSandboxKey {
		t.Errorf("apiKey = %q, want the sandbox key", client.apiKey)
	}
}
