package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"people-search/internal/config"
	"people-search/internal/csvfile"
	"people-search/internal/display"
	"people-search/internal/listener"
	"people-search/internal/mockbackend"
	"people-search/internal/probe"
	"people-search/internal/session"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) containsFunc(s string) func() bool {
	return func() bool { return strings.Contains(b.String(), s) }
}

func testOptions(baseURL string) *GlobalOptions {
	o := DefaultGlobalOptions()
	cfg := config.Default()
	cfg.BaseURL = baseURL
	cfg.Upload.BackoffStep = time.Millisecond
	o.cfg = cfg
	return o
}

func startMockBackend(t *testing.T, opts ...mockbackend.Option) string {
	t.Helper()
	srv := httptest.NewServer(mockbackend.New(opts...).Handler())
	t.Cleanup(srv.Close)
	return srv.URL + mockbackend.APIPrefix
}

func newTestShell(t *testing.T, baseURL string, input io.Reader) (*shell, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	o := testOptions(baseURL)
	s := newShell(o, listener.NewPlain(input, out), o.Client())
	s.start(context.Background())
	t.Cleanup(func() { assert.NoError(t, s.shutdown()) })
	return s, out
}

func TestShell_SampleLoadSearchExport(t *testing.T) {
	dir := t.TempDir()
	samplePath := filepath.Join(dir, "contacts.csv")
	exportPath := filepath.Join(dir, "results.csv")
	s, out := newTestShell(t, startMockBackend(t), strings.NewReader(""))

	require.True(t, s.handle("sample "+samplePath))
	assert.Contains(t, out.String(), "Wrote sample contacts to "+samplePath)

	require.True(t, s.handle("load "+samplePath))
	assert.Contains(t, out.String(), "Loaded contacts.csv (")

	require.True(t, s.handle("test"))
	require.Eventually(t, out.containsFunc("[ok] Backend connection successful! Status: healthy, Version: 2.0"),
		5*time.Second, 10*time.Millisecond)
	assert.Equal(t, probe.StatusConnected, s.prober.Status())

	require.True(t, s.handle("search"))
	assert.Contains(t, out.String(), "STARTED] contacts.csv")
	require.Eventually(t, out.containsFunc("SUCCEEDED]"), 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, out.containsFunc("Found 5 out of 5 people"), 5*time.Second, 10*time.Millisecond)

	st := s.session.State()
	assert.Equal(t, session.PhaseSucceeded, st.Phase)
	assert.Equal(t, 100, st.ProgressPercent)
	assert.Equal(t, 1, st.AttemptsMade)

	require.True(t, s.handle("status"))
	require.True(t, s.handle("results"))
	require.Eventually(t, out.containsFunc("Submission metrics"), 5*time.Second, 10*time.Millisecond)
	require.True(t, s.handle("metrics"))

	require.True(t, s.handle("export "+exportPath))
	assert.Contains(t, out.String(), "Exported 5 result(s) to "+exportPath)
	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), strings.Join(csvfile.ResultsHeader(), ",")))
	assert.Contains(t, string(data), "Ashley Heller")

	assert.False(t, s.handle("exit"))
}

func TestShell_FailedProbeBlocksSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "contacts.csv")
	require.NoError(t, writeSampleFile(path))
	s, out := newTestShell(t, srv.URL, strings.NewReader(""))

	s.handle("load " + path)
	s.handle("test")
	require.Eventually(t, func() bool { return s.prober.Status() == probe.StatusError },
		5*time.Second, 10*time.Millisecond)
	require.Eventually(t, out.containsFunc("[error] Backend connection failed: HTTP 503"),
		5*time.Second, 10*time.Millisecond)

	s.handle("search")
	assert.Contains(t, out.String(), display.ConnectionWarning)
	assert.False(t, s.session.InFlight())
	assert.Equal(t, session.PhaseIdle, s.session.State().Phase)
}

func TestShell_SearchFailsAfterRetries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.csv")
	require.NoError(t, writeSampleFile(path))
	s, out := newTestShell(t, startMockBackend(t, mockbackend.WithFailFirst(10)), strings.NewReader(""))

	s.handle("search " + path)
	require.Eventually(t, out.containsFunc("FAILED]"), 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, out.containsFunc("Failed to process file: Service temporarily unavailable"),
		5*time.Second, 10*time.Millisecond)

	st := s.session.State()
	assert.Equal(t, session.PhaseFailed, st.Phase)
	assert.Equal(t, 3, st.AttemptsMade)
	assert.Equal(t, "Service temporarily unavailable", st.Error)
}

func TestShell_ReplaceAndCancel(t *testing.T) {
	fakeClock := testingclock.NewFakeClock(time.Now())
	baseURL := startMockBackend(t, mockbackend.WithDelay(time.Hour), mockbackend.WithClock(fakeClock))
	path := filepath.Join(t.TempDir(), "contacts.csv")
	require.NoError(t, writeSampleFile(path))
	s, out := newTestShell(t, baseURL, strings.NewReader("maybe\nn\n"))

	s.handle("search " + path)
	require.Eventually(t, fakeClock.HasWaiters, 5*time.Second, 10*time.Millisecond)
	first := s.session.State().ID

	s.handle("search")
	assert.Contains(t, out.String(), "A search is already running. Replace it with a new one? [y/n]")
	assert.Contains(t, out.String(), "Please answer y/n.")
	assert.Contains(t, out.String(), "Keeping the running search.")
	assert.Equal(t, first, s.session.State().ID)

	s.handle("cancel")
	assert.Contains(t, out.String(), "Cancelling search "+first)
	require.Eventually(t, out.containsFunc("Search "+first+": "+session.CancelledMessage),
		5*time.Second, 10*time.Millisecond)
	assert.Equal(t, session.PhaseFailed, s.session.State().Phase)

	s.handle("cancel")
	assert.Contains(t, out.String(), session.ErrNothingRunning.Error())
}

func TestShell_Commands(t *testing.T) {
	dir := t.TempDir()
	notCSV := filepath.Join(dir, "contacts.txt")
	require.NoError(t, os.WriteFile(notCSV, []byte("name\n"), 0o600))

	testCases := []struct {
		name   string
		line   string
		expect string
	}{
		{name: "help", line: "help", expect: "Commands:"},
		{name: "unknown", line: "frobnicate now", expect: `Unknown command "frobnicate"`},
		{name: "load without path", line: "load", expect: "Usage: load <file>"},
		{name: "load non csv", line: "load " + notCSV, expect: csvfile.ErrNotCSV.Error()},
		{name: "search without file", line: "search", expect: "No file loaded."},
		{name: "results before search", line: "results", expect: "No results yet."},
		{name: "metrics before search", line: "metrics", expect: "No search has finished yet."},
		{name: "export before search", line: "export", expect: "No results to export."},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, out := newTestShell(t, "http://127.0.0.1:1/api", strings.NewReader(""))
			assert.True(t, s.handle(tc.line))
			assert.Contains(t, out.String(), tc.expect)
		})
	}

	t.Run("blank line is ignored", func(t *testing.T) {
		s, out := newTestShell(t, "http://127.0.0.1:1/api", strings.NewReader(""))
		assert.True(t, s.handle("   "))
		assert.Empty(t, out.String())
	})
}

func TestUploadOptions_Run(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contacts.csv")
	exportPath := filepath.Join(dir, "results.csv")
	require.NoError(t, writeSampleFile(path))

	o := &UploadOptions{GlobalOptions: testOptions(startMockBackend(t)), exportPath: exportPath}
	var out, errOut bytes.Buffer
	require.NoError(t, o.Run(context.Background(), path, &out, &errOut))

	assert.Contains(t, out.String(), "Found 5 out of 5 people")
	assert.Contains(t, errOut.String(), "STARTED] contacts.csv")
	assert.Contains(t, errOut.String(), "Exported 5 result(s)")
	_, err := os.Stat(exportPath)
	require.NoError(t, err)

	t.Run("failure returns an error", func(t *testing.T) {
		o := &UploadOptions{GlobalOptions: testOptions(startMockBackend(t, mockbackend.WithFailFirst(10)))}
		var out, errOut bytes.Buffer
		err := o.Run(context.Background(), path, &out, &errOut)
		require.Error(t, err)
		assert.Contains(t, errOut.String(), "Failed to process file: Service temporarily unavailable")
		assert.Empty(t, out.String())
	})
}

func TestHealthOptions_Run(t *testing.T) {
	o := &HealthOptions{GlobalOptions: testOptions(startMockBackend(t))}
	var out bytes.Buffer
	require.NoError(t, o.Run(context.Background(), &out))
	assert.Contains(t, out.String(), "[ok] Backend connection successful!")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	o = &HealthOptions{GlobalOptions: testOptions(srv.URL)}
	out.Reset()
	require.EqualError(t, o.Run(context.Background(), &out), "Backend connection failed: HTTP 500")
	assert.Contains(t, out.String(), "[error] ")
}

func TestSampleCommand_Stdout(t *testing.T) {
	cmd := NewCmdSample()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-"})
	require.NoError(t, cmd.Execute())

	contacts, err := csvfile.ReadContacts(&out)
	require.NoError(t, err)
	assert.Equal(t, csvfile.SampleContacts(), contacts)
}
