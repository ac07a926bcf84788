package beep

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

// Errors
var (
	ErrUnsupportedScheme = errors.New("unsupported source scheme")
	ErrSourceTooLarge    = errors.New("source exceeds download limit")
)

const (
	formatMP3 = "mp3"
	formatWAV = "wav"
)

type fetcher struct {
	client   *http.Client
	maxBytes int64
}

func newFetcher(timeout time.Duration, maxBytes int64) *fetcher {
	return &fetcher{client: &http.Client{Timeout: timeout}, maxBytes: maxBytes}
}

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

// open returns a seekable source and its container format. Remote sources
// are downloaded into memory because the decoders need to seek.
func (f *fetcher) open(ctx context.Context, raw string) (io.ReadSeekCloser, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", errors.Wrapf(err, "invalid source url %q", raw)
	}

	switch u.Scheme {
	case "http", "https":
		return f.download(ctx, u)
	case "file":
		return f.openFile(u.Path)
	case "":
		return f.openFile(raw)
	default:
		return nil, "", errors.Wrapf(ErrUnsupportedScheme, "scheme %q", u.Scheme)
	}
}

func (f *fetcher) openFile(p string) (io.ReadSeekCloser, string, error) {
	file, err := os.Open(p)
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to open %s", p)
	}
	return file, formatFromExt(p, ""), nil
}

func (f *fetcher) download(ctx context.Context, u *url.URL) (io.ReadSeekCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to build request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to fetch %s", u.Redacted())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", errors.Newf("failed to fetch %s: status %d", u.Redacted(), resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to read %s", u.Redacted())
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", errors.Wrapf(ErrSourceTooLarge, "%s", u.Redacted())
	}

	return readSeekNopCloser{bytes.NewReader(data)}, formatFromExt(u.Path, resp.Header.Get("Content-Type")), nil
}

func formatFromExt(p, contentType string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".wav", ".wave":
		return formatWAV
	case ".mp3":
		return formatMP3
	}
	if strings.Contains(strings.ToLower(contentType), "wav") {
		return formatWAV
	}
	return formatMP3
}

func decode(src io.ReadSeekCloser, format string) (beep.StreamSeekCloser, beep.Format, error) {
	if format == formatWAV {
		return wav.Decode(src)
	}
	return mp3.Decode(src)
}
