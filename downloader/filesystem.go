package downloader

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrNotRecorded = errors.New("url not recorded")

// Serves feeds from local disk. URLs without an http(s) scheme are
// read as file paths. Everything else is replayed from a capture
// file mapping URL to body. With Record set, URLs missing from the
// capture are fetched over HTTP and added to it.
type Filesystem struct {
	Path    string
	Record  bool
	Records map[string]fsRecord

	mutex sync.Mutex
}

type fsRecord struct {
	Body        string `json:"body"`
	RetrievedAt string `json:"retrieved_at"`
}

func NewFilesystem(path string, record bool) (*Filesystem, error) {
	fs := &Filesystem{
		Path:    path,
		Record:  record,
		Records: map[string]fsRecord{},
	}

	if path == "" {
		return fs, nil
	}

	err := fs.load()
	if err != nil {
		return nil, err
	}

	return fs, nil
}

func (f *Filesystem) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {

	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return readFile(strings.TrimPrefix(url, "file://"), options.MaxSize)
	}

	f.mutex.Lock()
	record, found := f.Records[url]
	f.mutex.Unlock()

	if found {
		body, err := base64.StdEncoding.DecodeString(record.Body)
		if err != nil {
			return nil, fmt.Errorf("decoding: %w", err)
		}
		if options.MaxSize > 0 && len(body) > options.MaxSize {
			return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, options.MaxSize)
		}
		log.Debug().Str("url", url).Str("retrieved_at", record.RetrievedAt).Msg("replaying capture")
		return body, nil
	}

	if !f.Record {
		return nil, fmt.Errorf("%w: %s", ErrNotRecorded, url)
	}

	// The lock is not held across the fetch.
	body, err := HTTPGet(ctx, url, headers, options)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.Records[url] = fsRecord{
		Body:        base64.StdEncoding.EncodeToString(body),
		RetrievedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if f.Path != "" {
		err = f.save()
		if err != nil {
			return nil, fmt.Errorf("saving: %w", err)
		}
	}
	log.Debug().Str("url", url).Int("bytes", len(body)).Msg("recorded capture")

	return body, nil
}

func readFile(path string, maxSize int) ([]byte, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if maxSize > 0 && len(buf) > maxSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, maxSize)
	}
	return buf, nil
}

func (f *Filesystem) load() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	_, err := os.Stat(f.Path)
	if os.IsNotExist(err) {
		return nil
	}

	buf, err := os.ReadFile(f.Path)
	if err != nil {
		return fmt.Errorf("reading: %w", err)
	}

	if len(bytes.TrimSpace(buf)) == 0 {
		return nil
	}

	err = json.Unmarshal(buf, &f.Records)
	if err != nil {
		return fmt.Errorf("unmarshalling: %w", err)
	}

	return nil
}

func (f *Filesystem) save() error {
	buf, err := json.Marshal(f.Records)
	if err != nil {
		return fmt.Errorf("marshalling: %w", err)
	}

	err = os.WriteFile(f.Path, buf, 0644)
	if err != nil {
		return fmt.Errorf("writing: %w", err)
	}

	return nil
}
