package agent

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/ggonzalez94/defi-sentinel/internal/model"
)

// Watch reads one alert per line from r and processes them in order. A
// reader goroutine feeds a single worker so slow alerts never block input.
func (a *Agent) Watch(ctx context.Context, r io.Reader, emit func(model.AlertOutcome) error) error {
	alerts := make(chan string, 16)
	readErr := make(chan error, 1)
	go func() {
		defer close(alerts)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case alerts <- line:
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case alert, ok := <-alerts:
			if !ok {
				return <-readErr
			}
			if err := emit(a.Process(ctx, alert)); err != nil {
				return err
			}
		}
	}
}
