package httpgin_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/metrics"
	redisx "github.com/kirinyoku/fairtix/internal/redis"
	redisrepo "github.com/kirinyoku/fairtix/internal/repository/redis"
	"github.com/kirinyoku/fairtix/internal/service/catalog"
	st "github.com/kirinyoku/fairtix/internal/service/servicetest"
	"github.com/kirinyoku/fairtix/internal/signature"
	httpgin "github.com/kirinyoku/fairtix/internal/transport/http/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// aliasVerifier checks real Ed25519 envelopes and reports the signer under
// the fixed test identity its key was issued for.
type aliasVerifier struct {
	alias map[domain.Identity]domain.Identity
}

func (v aliasVerifier) RecoverSigner(message, envelope []byte) (domain.Identity, error) {
	id, err := signature.Ed25519Verifier{}.RecoverSigner(message, envelope)
	if err != nil {
		return "", err
	}
	if a, ok := v.alias[id]; ok {
		return a, nil
	}
	return id, nil
}

type server struct {
	env      *st.Env
	h        http.Handler
	keys     map[domain.Identity]ed25519.PrivateKey
	verifier aliasVerifier
}

func newServer(t *testing.T, idem *redisrepo.IdempotencyStore, opts ...st.Option) *server {
	return newServerWith(t, idem, httpgin.Observability{}, opts...)
}

func newServerWith(t *testing.T, idem *redisrepo.IdempotencyStore, obs httpgin.Observability, opts ...st.Option) *server {
	env := st.New(t, opts...)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := &server{
		env:      env,
		keys:     map[domain.Identity]ed25519.PrivateKey{},
		verifier: aliasVerifier{alias: map[domain.Identity]domain.Identity{}},
	}
	s.h = httpgin.NewRouter(env.Svc, idem, httpgin.Authenticator{
		Verifier: s.verifier,
		Clock:    env.Clock,
	}, obs, logger)
	return s
}

func (s *server) key(who domain.Identity) ed25519.PrivateKey {
	if k, ok := s.keys[who]; ok {
		return k
	}
	priv, id, err := signature.GenerateKey()
	require.NoError(s.env.T, err)
	s.keys[who] = priv
	s.verifier.alias[id] = who
	return priv
}

// sign sets the authentication headers of req for who using key.
func (s *server) sign(req *http.Request, who domain.Identity, key ed25519.PrivateKey, body []byte) {
	ts := s.env.Clock.Now().Unix()
	envelope := signature.Sign(key, signature.RequestDigest(req.Method, req.URL.RequestURI(), ts, body))
	req.Header.Set("X-Identity", string(who))
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", hex.EncodeToString(envelope))
}

func (s *server) do(method, path string, who domain.Identity, body any, headers ...string) *httptest.ResponseRecorder {
	var b []byte
	if body != nil {
		var err error
		b, err = json.Marshal(body)
		require.NoError(s.env.T, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if who != "" {
		s.sign(req, who, s.key(who), b)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return s.serve(req)
}

func (s *server) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.h.ServeHTTP(w, req)
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) httpgin.ErrorResponse {
	var out httpgin.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRouter_Healthz(t *testing.T) {
	s := newServer(t, nil)
	w := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRouter_Identity(t *testing.T) {
	s := newServer(t, nil)

	w := s.do(http.MethodPost, "/events", "", httpgin.CreateEventRequest{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/healthz", "", nil, "X-Identity", "not-an-address")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "zero_identity", decodeErr(t, w).Code)
}

func TestRouter_SignedRequests(t *testing.T) {
	s := newServer(t, nil)

	pause := func() *http.Request {
		return httptest.NewRequest(http.MethodPost, "/admin/pause", bytes.NewReader(nil))
	}

	t.Run("unsigned", func(t *testing.T) {
		req := pause()
		req.Header.Set("X-Identity", string(st.Owner))
		w := s.serve(req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "unsigned_request", decodeErr(t, w).Code)
	})

	t.Run("forged", func(t *testing.T) {
		req := pause()
		s.sign(req, st.Owner, s.key(st.Alice), nil)
		w := s.serve(req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "signer_mismatch", decodeErr(t, w).Code)
	})

	t.Run("garbage signature", func(t *testing.T) {
		req := pause()
		s.sign(req, st.Owner, s.key(st.Owner), nil)
		req.Header.Set("X-Signature", "00ff")
		w := s.serve(req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid_signature", decodeErr(t, w).Code)
	})

	t.Run("stale", func(t *testing.T) {
		req := pause()
		s.sign(req, st.Owner, s.key(st.Owner), nil)
		s.env.Clock.Advance(10 * time.Minute)
		defer s.env.Clock.Advance(-10 * time.Minute)
		w := s.serve(req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "stale_request", decodeErr(t, w).Code)
	})

	t.Run("body swapped", func(t *testing.T) {
		signed := []byte(`{"bps":100}`)
		req := httptest.NewRequest(http.MethodPut, "/admin/refund-fee", bytes.NewReader([]byte(`{"bps":1000}`)))
		s.sign(req, st.Owner, s.key(st.Owner), signed)
		w := s.serve(req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid_signature", decodeErr(t, w).Code)
	})

	status, err := s.env.Svc.Emergency.Status(s.env.Ctx)
	require.NoError(t, err)
	assert.False(t, status.Paused)

	req := pause()
	s.sign(req, st.Owner, s.key(st.Owner), nil)
	assert.Equal(t, http.StatusNoContent, s.serve(req).Code)
}

func TestRouter_PurchaseAndRead(t *testing.T) {
	s := newServer(t, nil)
	s.env.Participant(st.Alice)
	eventID := s.env.Event()

	w := s.do(http.MethodPost, fmt.Sprintf("/events/%d/tickets", eventID), st.Alice,
		httpgin.PurchaseRequest{SeatInfo: "A-1", Paid: st.Price})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created httpgin.TicketResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = s.do(http.MethodGet, "/tickets/"+created.TicketID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view struct {
		Holder   domain.Identity `json:"holder"`
		SeatInfo string          `json:"seat_info"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, st.Alice, view.Holder)

	w = s.do(http.MethodGet, "/users/"+string(st.Alice)+"/tickets", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var owned httpgin.TicketsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &owned))
	assert.Equal(t, []string{created.TicketID}, owned.Tickets)
}

func TestRouter_ErrorMapping(t *testing.T) {
	s := newServer(t, nil)
	s.env.Participant(st.Alice, st.Bob)
	eventID := s.env.Event(func(p *catalog.CreateEventParams) { p.MaxTickets = 1 })
	s.env.Buy(st.Alice, eventID)
	purchase := fmt.Sprintf("/events/%d/tickets", eventID)

	cases := []struct {
		name   string
		method string
		path   string
		who    domain.Identity
		body   any
		status int
		code   string
	}{
		{"sold out", http.MethodPost, purchase, st.Bob, httpgin.PurchaseRequest{Paid: st.Price}, http.StatusConflict, "sold_out"},
		{"unverified", http.MethodPost, purchase, st.Carol, httpgin.PurchaseRequest{Paid: st.Price}, http.StatusForbidden, "not_verified"},
		{"unknown event", http.MethodGet, "/events/999", "", nil, http.StatusNotFound, "event_not_found"},
		{"not admin", http.MethodPost, "/admin/pause", st.Alice, nil, http.StatusForbidden, "not_admin"},
		{"bad id", http.MethodGet, "/tickets/nope", "", nil, http.StatusBadRequest, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(tc.method, tc.path, tc.who, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Equal(t, tc.code, decodeErr(t, w).Code)
		})
	}
}

func TestRouter_PausedSetsRetryAfter(t *testing.T) {
	s := newServer(t, nil)
	s.env.Participant(st.Alice)
	eventID := s.env.Event()

	w := s.do(http.MethodPost, "/admin/pause", st.Owner, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodPost, fmt.Sprintf("/events/%d/tickets", eventID), st.Alice,
		httpgin.PurchaseRequest{Paid: st.Price})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "system_paused", decodeErr(t, w).Code)

	w = s.do(http.MethodGet, "/admin/status", st.Owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"paused":true`)
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) (bool, int64, time.Duration, error) {
	return false, 0, time.Second, nil
}

func TestRouter_RateLimited(t *testing.T) {
	s := newServer(t, nil, st.WithLimiter(denyLimiter{}))
	s.env.Participant(st.Alice)
	eventID := s.env.Event()

	w := s.do(http.MethodPost, fmt.Sprintf("/events/%d/tickets", eventID), st.Alice,
		httpgin.PurchaseRequest{Paid: st.Price})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", decodeErr(t, w).Code)
}

func TestRouter_PurchaseReplaysIdempotentResult(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := newServer(t, redisrepo.NewIdempotencyStore(db, time.Hour))
	s.env.Participant(st.Alice)
	eventID := s.env.Event()

	key := redisx.KeyIdempotency(fmt.Sprintf("purchase:%d:%s", eventID, st.Alice), "k1")
	mock.ExpectGet(key).SetVal(`RES:201:{"ticket_id":"cached"}`)

	w := s.do(http.MethodPost, fmt.Sprintf("/events/%d/tickets", eventID), st.Alice,
		httpgin.PurchaseRequest{Paid: st.Price}, "Idempotency-Key", "k1")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"ticket_id":"cached"}`, w.Body.String())
	assert.Equal(t, "k1", w.Header().Get("Idempotency-Key"))
	assert.Equal(t, uint32(0), s.env.EventState(eventID).TicketsSold)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_PurchaseKeyInProgress(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := newServer(t, redisrepo.NewIdempotencyStore(db, time.Hour))
	s.env.Participant(st.Alice)
	eventID := s.env.Event()

	key := redisx.KeyIdempotency(fmt.Sprintf("purchase:%d:%s", eventID, st.Alice), "k2")
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSetNX(key, "LOCK", 60*time.Second).SetVal(false)
	mock.ExpectGet(key).SetVal("LOCK")

	w := s.do(http.MethodPost, fmt.Sprintf("/events/%d/tickets", eventID), st.Alice,
		httpgin.PurchaseRequest{Paid: st.Price}, "Idempotency-Key", "k2")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, uint32(0), s.env.EventState(eventID).TicketsSold)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_PurchaseStoresFinalRefusal(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := newServer(t, redisrepo.NewIdempotencyStore(db, time.Hour))
	s.env.Participant(st.Alice, st.Bob)
	eventID := s.env.Event(func(p *catalog.CreateEventParams) { p.MaxTickets = 1 })
	s.env.Buy(st.Alice, eventID)

	key := redisx.KeyIdempotency(fmt.Sprintf("purchase:%d:%s", eventID, st.Bob), "k3")
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSetNX(key, "LOCK", 60*time.Second).SetVal(true)
	mock.ExpectSet(key, `RES:409:{"error":"event is sold out","code":"sold_out"}`, time.Hour).SetVal("OK")

	w := s.do(http.MethodPost, fmt.Sprintf("/events/%d/tickets", eventID), st.Bob,
		httpgin.PurchaseRequest{Paid: st.Price}, "Idempotency-Key", "k3")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "sold_out", decodeErr(t, w).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_EventETag(t *testing.T) {
	s := newServer(t, nil)
	eventID := s.env.Event()
	path := fmt.Sprintf("/events/%d", eventID)

	w := s.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tag := w.Header().Get("ETag")
	require.NotEmpty(t, tag)

	w = s.do(http.MethodGet, path, "", nil, "If-None-Match", tag)
	assert.Equal(t, http.StatusNotModified, w.Code)
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.New(reg)
	require.NoError(t, err)

	s := newServerWith(t, nil, httpgin.Observability{Recorder: rec, Gatherer: reg})

	s.do(http.MethodGet, "/events/42", "", nil)

	w := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `fairtix_http_request_duration_seconds_count{method="GET",route="/events/:id",status="404"} 1`)
	assert.Contains(t, body, `fairtix_rejections_total{code="event_not_found",kind="not_found"} 1`)
}
