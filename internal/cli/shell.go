package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"people-search/internal/backend"
	"people-search/internal/csvfile"
	"people-search/internal/display"
	"people-search/internal/listener"
	"people-search/internal/logger"
	"people-search/internal/probe"
	"people-search/internal/search"
	"people-search/internal/session"
)

const (
	DefaultResultsFile = "people_search_results.csv"
	DefaultSampleFile  = "sample_contacts.csv"

	banner = "People Search. Type 'help' for commands, 'exit' or Ctrl+D to quit."
)

const helpText = `Commands:
  test             check the backend connection
  load <file>      select a CSV file (columns: name, address, phone)
  search [file]    upload the selected file and search for everyone in it
  cancel           cancel the running search
  status           show connection and search state
  results          show the last search results
  metrics          show timing of the last search
  export [file]    write the last results as CSV (default ` + DefaultResultsFile + `)
  sample [file]    write a sample contacts CSV (default ` + DefaultSampleFile + `)
  help             show this help
  exit             quit`

type shell struct {
	baseURL string
	console *listener.Console
	prober  *probe.Prober
	session *session.Session

	ctx         context.Context
	stop        context.CancelFunc
	group       *errgroup.Group
	unsubscribe func()

	mu     sync.Mutex
	loaded *search.UploadRequest
	last   *session.Result
}

func newShell(o *GlobalOptions, console *listener.Console, client backend.Backend) *shell {
	return &shell{
		baseURL: o.Config().BaseURL,
		console: console,
		prober:  o.NewProber(client),
		session: o.NewSession(client),
	}
}

func runShell(ctx context.Context, o *GlobalOptions) error {
	console, err := listener.New(display.Prompt(session.State{}))
	if err != nil {
		return fmt.Errorf("init terminal input: %w", err)
	}
	defer console.Close()

	s := newShell(o, console, o.Client())
	s.start(ctx)
	s.console.AsyncPrintln(banner)
	for {
		line, err := s.console.ReadLine()
		if err != nil {
			s.console.Println("Goodbye!")
			break
		}
		if !s.handle(line) {
			break
		}
	}
	return s.shutdown()
}

// start launches the goroutines that render progress in the prompt and print
// finished searches above it.
func (s *shell) start(ctx context.Context) {
	ctx, s.stop = context.WithCancel(ctx)
	s.group, s.ctx = errgroup.WithContext(ctx)

	states, unsubscribe := s.session.Subscribe()
	s.unsubscribe = unsubscribe
	s.group.Go(func() error {
		for st := range states {
			s.console.SetPrompt(display.Prompt(st))
		}
		return nil
	})
	s.group.Go(func() error {
		for res := range s.session.Results() {
			s.report(res)
		}
		return nil
	})
}

func (s *shell) shutdown() error {
	s.stop()
	s.unsubscribe()
	s.session.Close()
	return s.group.Wait()
}

// handle runs one command line. It returns false when the shell should exit.
func (s *shell) handle(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	cmd := strings.ToLower(fields[0])
	arg := strings.TrimSpace(strings.TrimSpace(line)[len(fields[0]):])

	switch cmd {
	case "exit", "quit":
		s.console.Println("Goodbye!")
		return false
	case "help", "?":
		s.console.Println(helpText)
	case "test":
		s.testConnection()
	case "load":
		s.load(arg)
	case "search":
		s.search(arg)
	case "cancel":
		s.cancel()
	case "status":
		s.console.Println(display.State(s.session.State(), s.prober.Status(), s.loadedName()))
	case "results":
		s.results()
	case "metrics":
		s.metrics()
	case "export":
		s.export(arg)
	case "sample":
		s.sample(arg)
	default:
		s.console.Println(fmt.Sprintf("Unknown command %q. Type 'help' for the list of commands.", cmd))
	}
	return true
}

func (s *shell) testConnection() {
	if s.prober.Status() == probe.StatusTesting {
		s.console.Println("A connection test is already running.")
		return
	}
	s.console.Println(fmt.Sprintf("Testing connection to %s ...", s.baseURL))
	s.group.Go(func() error {
		res := s.prober.Probe(s.ctx)
		if !res.Superseded && s.ctx.Err() == nil {
			s.console.AsyncPrintln(display.ProbeResult(res))
		}
		return nil
	})
}

func (s *shell) load(path string) bool {
	if path == "" {
		s.console.Println("Usage: load <file>")
		return false
	}
	req, err := csvfile.Load(path)
	if err != nil {
		s.console.Println(err.Error())
		return false
	}
	s.mu.Lock()
	s.loaded = &req
	s.mu.Unlock()
	s.console.Println(fmt.Sprintf("Loaded %s (%d bytes)", req.FileName(), req.Size()))
	return true
}

func (s *shell) loadedName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded == nil {
		return ""
	}
	return s.loaded.FileName()
}

func (s *shell) search(path string) {
	if path != "" && !s.load(path) {
		return
	}
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded == nil {
		s.console.Println("No file loaded. Use 'load <file>' first.")
		return
	}
	if !s.prober.Status().AllowsSubmit() {
		s.console.Println(display.ConnectionWarning)
		return
	}
	if s.session.InFlight() && !s.console.AskYesNo("A search is already running. Replace it with a new one?") {
		s.console.Println("Keeping the running search.")
		return
	}

	id, err := s.session.Submit(s.ctx, *loaded)
	if err != nil {
		s.console.Println(err.Error())
		return
	}
	s.console.Println(fmt.Sprintf("[Search %s STARTED] %s (%d bytes)", id, loaded.FileName(), loaded.Size()))
}

func (s *shell) cancel() {
	id, err := s.session.Cancel()
	if err != nil {
		s.console.Println(err.Error())
		return
	}
	s.console.Println(fmt.Sprintf("Cancelling search %s ...", id))
}

func (s *shell) report(res session.Result) {
	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()

	if res.Succeeded() {
		s.console.AsyncPrintln(fmt.Sprintf("[Search %s SUCCEEDED]", res.SubmissionID))
		s.console.AsyncPrintln(display.FormatResults(res.Payload))
		logger.Log.Debugw("search results", "submission", res.SubmissionID, "results", display.FormatResultsFull(res.Payload))
	} else {
		s.console.AsyncPrintln(fmt.Sprintf("[Search %s FAILED]", res.SubmissionID))
		s.console.AsyncPrintln(display.Failure(res))
	}
	if res.Metrics != nil {
		s.console.AsyncPrintln(display.FormatSubmissionMetrics(res.Metrics))
	}
}

func (s *shell) results() {
	st := s.session.State()
	if st.Payload == nil {
		s.console.Println("No results yet. Run 'search' first.")
		return
	}
	s.console.Println(display.FormatResults(st.Payload))
}

func (s *shell) metrics() {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last == nil {
		s.console.Println("No search has finished yet.")
		return
	}
	s.console.Println(display.FormatSubmissionMetrics(last.Metrics))
}

func (s *shell) export(path string) {
	if path == "" {
		path = DefaultResultsFile
	}
	st := s.session.State()
	if st.Payload == nil {
		s.console.Println("No results to export. Run 'search' first.")
		return
	}
	if err := writeResultsFile(path, st.Payload); err != nil {
		s.console.Println(err.Error())
		return
	}
	s.console.Println(fmt.Sprintf("Exported %d result(s) to %s", len(st.Payload.People), path))
}

func (s *shell) sample(path string) {
	if path == "" {
		path = DefaultSampleFile
	}
	if err := writeSampleFile(path); err != nil {
		s.console.Println(err.Error())
		return
	}
	s.console.Println(fmt.Sprintf("Wrote sample contacts to %s", path))
}

func writeResultsFile(path string, payload *search.ResponsePayload) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return csvfile.WriteResults(f, payload.People)
}

func writeSampleFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return csvfile.WriteSample(f)
}
