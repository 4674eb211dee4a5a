// Package errors provides panic recovery and crash protection for the bot.
// Recovered panics are counted over a sliding window; when a burst exceeds
// the limit the process reports to the error webhook and shuts down.
package errors

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/goccy/go-json"
)

const maxStackLength = 1000

// Options tunes the crash protection
type Options struct {
	// MaxErrors is the number of panics tolerated inside Window
	MaxErrors int
	Window    time.Duration
	// CheckInterval is how often the window is inspected
	CheckInterval time.Duration
	// Exit ends the process after the shutdown func ran. Defaults to os.Exit.
	Exit func(code int)
}

// DefaultOptions tolerates 15 panics every 5 seconds
func DefaultOptions() Options {
	return Options{
		MaxErrors:     15,
		Window:        5 * time.Second,
		CheckInterval: time.Second,
		Exit:          os.Exit,
	}
}

// ErrorHandler counts recovered panics and reports them
type ErrorHandler struct {
	webhookURL   string
	shutdownFunc func()
	opts         Options
	client       *http.Client

	mu       sync.Mutex
	recent   []time.Time
	total    int
	stopOnce sync.Once
	stopChan chan struct{}
	now      func() time.Time
}

// ReportErrorOptions contains options for reporting an error
type ReportErrorOptions struct {
	Error   string
	Message string
	Source  string
	Stack   string
}

var (
	handler *ErrorHandler
	once    sync.Once
)

// Init initializes the global error handler
func Init(webhookURL string, shutdownFunc func()) *ErrorHandler {
	once.Do(func() {
		handler = NewErrorHandler(webhookURL, shutdownFunc, DefaultOptions())
	})
	return handler
}

// Get returns the global error handler instance
func Get() *ErrorHandler {
	return handler
}

// NewErrorHandler creates an ErrorHandler and starts watching the panic rate
func NewErrorHandler(webhookURL string, shutdownFunc func(), opts Options) *ErrorHandler {
	defaults := DefaultOptions()
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = defaults.MaxErrors
	}
	if opts.Window <= 0 {
		opts.Window = defaults.Window
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = defaults.CheckInterval
	}
	if opts.Exit == nil {
		opts.Exit = defaults.Exit
	}

	h := &ErrorHandler{
		webhookURL:   webhookURL,
		shutdownFunc: shutdownFunc,
		opts:         opts,
		client:       &http.Client{Timeout: 10 * time.Second},
		stopChan:     make(chan struct{}),
		now:          time.Now,
	}
	go h.watch()
	return h
}

func (h *ErrorHandler) watch() {
	ticker := time.NewTicker(h.opts.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if h.Recent() > h.opts.MaxErrors {
				h.crash()
				return
			}
		case <-h.stopChan:
			return
		}
	}
}

func (h *ErrorHandler) crash() {
	start := h.now()
	logger.Warn("Se detectó un número demasiado alto de errores", "CRITICAL")
	logger.Warn("Apagando...", "CRITICAL")

	h.Report(ReportErrorOptions{
		Error:   "Critical Error",
		Message: fmt.Sprintf("%d errores en %s. Apagando...", h.Recent(), h.opts.Window),
		Source:  "AntiCrash",
	})

	if h.shutdownFunc != nil {
		h.shutdownFunc()
	}

	logger.Warn(fmt.Sprintf("Finalizando proceso... Tiempo total: %v", h.now().Sub(start)), "CRITICAL")
	h.opts.Exit(1)
}

// Stop stops watching the panic rate
func (h *ErrorHandler) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
}

// prune drops timestamps older than the window. Callers hold h.mu.
func (h *ErrorHandler) prune(now time.Time) {
	cutoff := now.Add(-h.opts.Window)
	keep := 0
	for keep < len(h.recent) && h.recent[keep].Before(cutoff) {
		keep++
	}
	h.recent = h.recent[keep:]
}

// Recent returns the panics counted inside the current window
func (h *ErrorHandler) Recent() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prune(h.now())
	return len(h.recent)
}

// Total returns every panic counted since start
func (h *ErrorHandler) Total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}

// IncrementError counts an error in the current window
func (h *ErrorHandler) IncrementError() {
	h.mu.Lock()
	now := h.now()
	h.prune(now)
	h.recent = append(h.recent, now)
	h.total++
	count := len(h.recent)
	h.mu.Unlock()

	logger.Error(fmt.Sprintf("Errores recientes: %d", count), "AntiCrash")
}

// HandlePanic counts a recovered panic and logs where it came from
func (h *ErrorHandler) HandlePanic(recovered interface{}, stack []byte) {
	h.IncrementError()
	logger.Debug("Unhandled Panic/Catch", "AntiCrash")
	logger.Error(fmt.Sprintf("%v", recovered), "SYS")
	if len(stack) > 0 {
		logger.Debug(string(stack), "SYS")
	}
}

type webhookEmbed struct {
	Author      webhookAuthor  `json:"author"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []webhookField `json:"fields,omitempty"`
	Footer      webhookFooter  `json:"footer"`
	Timestamp   string         `json:"timestamp"`
}

type webhookAuthor struct {
	Name string `json:"name"`
}

type webhookField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type webhookFooter struct {
	Text string `json:"text"`
}

func (h *ErrorHandler) payload(data ReportErrorOptions) ([]byte, error) {
	embed := webhookEmbed{
		Author:      webhookAuthor{Name: fmt.Sprintf("Error %s", data.Error)},
		Description: data.Message,
		Color:       0xFF0000,
		Footer:      webhookFooter{Text: "PancyCommunity"},
		Timestamp:   h.now().Format(time.RFC3339),
	}
	if data.Source != "" {
		embed.Fields = append(embed.Fields, webhookField{Name: "Origen", Value: data.Source})
	}
	if data.Stack != "" {
		stack := data.Stack
		if len(stack) > maxStackLength {
			stack = stack[:maxStackLength] + "..."
		}
		embed.Fields = append(embed.Fields, webhookField{Name: "Stack", Value: "```" + stack + "```"})
	}
	return json.Marshal(map[string][]webhookEmbed{"embeds": {embed}})
}

// Report sends an error report to the Discord webhook
func (h *ErrorHandler) Report(data ReportErrorOptions) {
	if h.webhookURL == "" {
		return
	}

	body, err := h.payload(data)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to marshal error report: %v", err), "AntiCrash")
		return
	}

	req, err := http.NewRequest(http.MethodPost, h.webhookURL, bytes.NewReader(body))
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to create webhook request: %v", err), "AntiCrash")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to send error report: %v", err), "AntiCrash")
		return
	}
	defer resp.Body.Close()

	logger.Warn(fmt.Sprintf("Sent ErrorReport to Webhook, Status: %d", resp.StatusCode), "AntiCrash")
}

// RecoverFrom counts an already recovered panic against the global handler
func RecoverFrom(r interface{}) {
	if handler != nil {
		handler.HandlePanic(r, debug.Stack())
		return
	}
	logger.Error(fmt.Sprintf("Panic recovered (no handler): %v", r), "AntiCrash")
}

// RecoverMiddleware returns a recovery function for use in deferred calls
func RecoverMiddleware() func() {
	return func() {
		if r := recover(); r != nil {
			RecoverFrom(r)
		}
	}
}
