// Command suggest is a terminal search box: every stdin line is the query as
// typed so far, and debounced suggestions are printed as JSON lines.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/search"
	"github.com/angelmondragon/storefront-backend/pkg/env"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type output struct {
	Query       string               `json:"query"`
	Suggestions []catalog.Suggestion `json:"suggestions"`
	Error       string               `json:"error,omitempty"`
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "suggest", Output: os.Stderr})

	baseURL := flag.String("base-url", env.Get("STOREFRONT_SUGGEST_BASE_URL", "http://localhost:8080"), "storefront API base URL")
	delay := flag.Duration("delay", env.GetDuration("STOREFRONT_SUGGEST_DELAY", 300*time.Millisecond), "quiet period before a query is sent")
	minLen := flag.Int("min", 2, "minimum query length before fetching")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "base_url", *baseURL)

	fetcher, err := search.NewHTTPFetcher(*baseURL)
	if err != nil {
		logg.Error(ctx, "failed to build suggestion fetcher", err)
		os.Exit(1)
	}
	debouncer := search.NewDebouncer(fetcher, search.WithDelay(*delay), search.WithMinQueryLength(*minLen))

	done := make(chan struct{})
	go func() {
		defer close(done)
		enc := json.NewEncoder(os.Stdout)
		for result := range debouncer.Results() {
			out := output{Query: result.Query, Suggestions: result.Suggestions}
			if out.Suggestions == nil {
				out.Suggestions = []catalog.Suggestion{}
			}
			if result.Err != nil {
				out.Error = result.Err.Error()
			}
			if err := enc.Encode(out); err != nil {
				logg.Error(ctx, "failed to write suggestions", err)
			}
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			logg.Error(ctx, "failed to read stdin", err)
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				// Let the last query settle before closing.
				time.Sleep(*delay + 2*time.Second)
				break loop
			}
			debouncer.Type(line)
		}
	}

	debouncer.Close()
	<-done
}
