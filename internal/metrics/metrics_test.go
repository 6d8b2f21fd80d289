package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRecordRequest(t *testing.T) {
	RecordRequest("GET", "/test", 200, 100*time.Millisecond)
	RecordRequest("POST", "/test", 201, 50*time.Millisecond)
	RecordRequest("GET", "/test", 404, 10*time.Millisecond)
}

func TestRecordDispatch(t *testing.T) {
	RecordDispatch("2", "email", "sent")
	RecordDispatch("3", "sms", "failed")
}

func TestRecordDispatchSkipped(t *testing.T) {
	RecordDispatchSkipped("2", "duplicate")
	RecordDispatchSkipped("1", "brak_opt_out")
}

func TestRecordStageRun(t *testing.T) {
	RecordStageRun("2", "scheduler", 300*time.Millisecond)
	RecordStageRun("5", "manual", 90*time.Millisecond)
}

func TestRecordTransportSend(t *testing.T) {
	RecordTransportSend("email", 120*time.Millisecond)
	RecordTransportSend("sms", 80*time.Millisecond)
}

func TestRecordSchedulerTick(t *testing.T) {
	RecordSchedulerTick()
	RecordSchedulerTick()
}

func TestRecordRateFetch(t *testing.T) {
	RecordRateFetch("nbp")
	RecordRateFetch("cache")
	RecordRateFetch("fallback")
}

func TestHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty metrics output")
	}
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/correspondence", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, middleware must not alter the response", rec.Code)
	}
}
