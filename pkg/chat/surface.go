package chat

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Surface lookups when the referenced message does
// not exist (deleted, or outside the retention window).
var ErrNotFound = errors.New("message not found")

// Outgoing is the payload of a message the bot sends or edits. Either Content
// or Embed is set, depending on the response mode.
type Outgoing struct {
	Content        string
	Embed          *Embed
	File           *OutgoingFile
	Silent         bool
	SuppressEmbeds bool
}

type OutgoingFile struct {
	Name string
	Data []byte
}

// Surface is the chat transport the relay runs against. Implementations wrap
// a real gateway (Discord, Matrix, ...); the repo ships a console surface and
// a scripted test surface.
type Surface interface {
	// Reply sends a new message in reply to an existing one.
	Reply(ctx context.Context, to *Message, out Outgoing) (*Message, error)
	// Edit replaces the payload of an already-sent message in place.
	Edit(ctx context.Context, target *Message, out Outgoing) error
	// FetchMessage resolves a message by reference. Returns ErrNotFound if it
	// no longer exists.
	FetchMessage(ctx context.Context, ref Reference) (*Message, error)
	// PreviousMessage returns the message immediately preceding m in its
	// channel, or nil if m is the oldest retained message.
	PreviousMessage(ctx context.Context, m *Message) (*Message, error)
}

// ContentFetcher downloads attachment bodies.
type ContentFetcher interface {
	// FetchBytes downloads the resource at url and returns its body.
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher is the production ContentFetcher, a plain HTTP client with a
// bounded timeout so a stalled download cannot hold a node lock forever.
type HTTPFetcher struct {
	client *http.Client
}

const DefaultFetchTimeout = 120 * time.Second

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout == 0 {
		timeout = DefaultFetchTimeout
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building attachment request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", url)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", url)
	}
	return body, nil
}

var _ ContentFetcher = (*HTTPFetcher)(nil)
