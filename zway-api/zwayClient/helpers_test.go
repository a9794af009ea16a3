package zwayClient

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	sessionCookie = "ZWAYSession"
	dataBody      = `{"controller":{"data":{"softwareRevisionVersion":{"value":"v3.0.6"}}}}`
)

// fakeZway serves fixed bodies per request path, like a Z-Way server would.
type fakeZway struct {
	mu     sync.Mutex
	routes map[string]string
	hits   map[string]int
	// requiredCookie, if set, must be present on every ZWaveAPI request.
	requiredCookie string
	logins         int
	loginBodies    []string
	loginStatus    int
}

func newFakeZway(routes map[string]string) *fakeZway {
	if _, ok := routes["/ZWaveAPI/Data"]; !ok {
		routes["/ZWaveAPI/Data"] = dataBody
	}
	return &fakeZway{routes: routes, hits: map[string]int{}, loginStatus: http.StatusOK}
}

func (f *fakeZway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	f.hits[path]++

	if path == "/ZAutomation/api/v1/login" {
		f.logins++
		body, _ := io.ReadAll(r.Body)
		f.loginBodies = append(f.loginBodies, string(body))
		if r.Method != http.MethodPost ||
			r.Header.Get("Content-Type") != "application/json" ||
			r.Header.Get("Accept") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if f.loginStatus != http.StatusOK {
			w.WriteHeader(f.loginStatus)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "secret"})
		w.Write([]byte(`{"data":{"sid":"secret"}}`))
		return
	}

	if f.requiredCookie != "" {
		c, err := r.Cookie(sessionCookie)
		if err != nil || c.Value != f.requiredCookie {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	body, ok := f.routes[path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Write([]byte(body))
}

func (f *fakeZway) setRoute(path string, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[path] = body
}

func (f *fakeZway) deleteRoute(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.routes, path)
}

func (f *fakeZway) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fakeZway) loginBody(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginBodies[i]
}

func (f *fakeZway) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

// startFakeZway starts the fake server and returns a config pointing at it.
func startFakeZway(t *testing.T, f *fakeZway) Config {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return Config{Host: host, Port: port}
}

func sensorTypePath(base, instance, class, data string) string {
	return "/ZWaveAPI/Run/devices[" + base + "].instances[" + instance + "].commandClasses[" + class + "].data[" + data + "].sensorTypeString.value"
}

// fakeTransport fails the first len(failures) round trips, then answers with
// body.
type fakeTransport struct {
	failures []error
	body     string
	status   int
	calls    int
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	if f.calls <= len(f.failures) {
		return nil, f.failures[f.calls-1]
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(f.body)),
		Request:    req,
	}, nil
}

// treeOnlyTransport answers Run/devices with tree and fails every other
// request with fail.
type treeOnlyTransport struct {
	tree  string
	fail  error
	calls int
}

func (f *treeOnlyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	if !strings.HasSuffix(req.URL.Path, "/Run/devices") {
		return nil, f.fail
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(f.tree)),
		Request:    req,
	}, nil
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func connRefused() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: &net.AddrError{Err: syscall.ECONNREFUSED.Error(), Addr: "zway:8083"}}
}

func repeat(err error, n int) []error {
	errs := make([]error, n)
	for i := range errs {
		errs[i] = err
	}
	return errs
}

// newTestClient builds a client around rt without contacting a server.
func newTestClient(t *testing.T, rt http.RoundTripper) *ZwayApiClient {
	return &ZwayApiClient{
		Host:     "zway",
		client:   http.Client{Transport: rt, Timeout: DefaultTimeout},
		baseUrl:  "http://zway:8083/ZWaveAPI/",
		loginUrl: "http://zway:8083/ZAutomation/api/v1/login",
		session:  unauthenticated{},
		logger:   zaptest.NewLogger(t).Sugar(),
	}
}
