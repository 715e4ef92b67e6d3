package downloader

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Serves canned responses from memory. Used to drive the pipeline
// without a network.
type MemoryDownloader struct {
	mutex     sync.Mutex
	responses map[string]memoryResponse
	requests  map[string]int
}

type memoryResponse struct {
	body  []byte
	err   error
	delay time.Duration
}

func NewMemoryDownloader() *MemoryDownloader {
	return &MemoryDownloader{
		responses: map[string]memoryResponse{},
		requests:  map[string]int{},
	}
}

func (d *MemoryDownloader) Set(url string, body []byte) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.responses[url] = memoryResponse{body: body}
}

func (d *MemoryDownloader) SetError(url string, err error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.responses[url] = memoryResponse{err: err}
}

// Responses for url are held back for delay, or until the request
// context is done.
func (d *MemoryDownloader) SetDelay(url string, delay time.Duration) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	r := d.responses[url]
	r.delay = delay
	d.responses[url] = r
}

// Number of Get calls made for url.
func (d *MemoryDownloader) Requests(url string) int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.requests[url]
}

func (d *MemoryDownloader) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	d.mutex.Lock()
	d.requests[url]++
	r, found := d.responses[url]
	d.mutex.Unlock()

	if !found {
		return nil, fmt.Errorf("status %d", 404)
	}

	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	if r.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("making request: %w", ctx.Err())
		case <-time.After(r.delay):
		}
	}

	if r.err != nil {
		return nil, r.err
	}

	if options.MaxSize > 0 && len(r.body) > options.MaxSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, options.MaxSize)
	}

	body := make([]byte, len(r.body))
	copy(body, r.body)
	return body, nil
}
