package cassette

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	vcr "gopkg.in/dnaeon/go-vcr.v4/pkg/cassette"
	"gopkg.in/dnaeon/go-vcr.v4/pkg/recorder"

	"github.com/ericfisherdev/gosheets/internal/domain/model"
	"github.com/ericfisherdev/gosheets/internal/domain/port/driven"
)

// ErrInteractionNotFound is returned by Recorder.RoundTrip when the request has
// no recorded match and the record mode does not allow hitting the network.
var ErrInteractionNotFound = errors.New("no recorded interaction matches request")

// Recorder is an http.RoundTripper that replays interactions from a stored
// cassette and, depending on its mode, records new ones through the network
// transport. Matching and capture run on go-vcr; the store stays the source of
// truth, so go-vcr only ever sees a scratch copy of the cassette.
// It is safe for concurrent use.
type Recorder struct {
	store    driven.CassetteStore
	name     string
	mode     model.RecordMode
	cfg      Config
	vcr      *recorder.Recorder
	workDir  string
	existing []model.Interaction
	record   bool
	logger   *slog.Logger

	mu       sync.Mutex
	recorded []model.Interaction
	stopped  bool
}

// New loads the named cassette from store and returns a Recorder for it. network
// is the transport used for recording and for ignored hosts; nil means
// http.DefaultTransport. A stored cassette without interactions counts as
// missing, and mode none requires an existing one.
func New(ctx context.Context, store driven.CassetteStore, name string, mode model.RecordMode, cfg Config, network http.RoundTripper) (*Recorder, error) {
	if network == nil {
		network = http.DefaultTransport
	}

	vcrMode, ok := vcrModes[mode]
	if !ok {
		return nil, fmt.Errorf("cassette %q: unsupported record mode %q", name, mode)
	}

	existing, err := store.Load(ctx, name)
	switch {
	case errors.Is(err, driven.ErrCassetteNotFound):
		existing = &model.Cassette{Name: name}
	case err != nil:
		return nil, fmt.Errorf("loading cassette %q: %w", name, err)
	}
	exists := len(existing.Interactions) > 0

	if mode == model.RecordModeNone && !exists {
		return nil, fmt.Errorf("cassette %q in mode %s: %w", name, mode, driven.ErrCassetteNotFound)
	}

	r := &Recorder{
		store:  store,
		name:   name,
		mode:   mode,
		cfg:    cfg,
		logger: slog.Default().With("cassette", name),
	}
	switch mode {
	case model.RecordModeOnce:
		r.record = !exists
	case model.RecordModeNewEpisodes, model.RecordModeAll:
		r.record = true
	}
	if mode != model.RecordModeAll {
		r.existing = existing.Interactions
	}

	r.workDir, err = os.MkdirTemp("", "gosheets-cassette-")
	if err != nil {
		return nil, fmt.Errorf("creating cassette work dir: %w", err)
	}
	path := filepath.Join(r.workDir, "cassette")

	if len(r.existing) > 0 {
		scratch := vcr.New(path)
		for _, in := range r.existing {
			scratch.AddInteraction(toVCR(in))
		}
		if err := scratch.Save(); err != nil {
			_ = os.RemoveAll(r.workDir)
			return nil, fmt.Errorf("staging cassette %q: %w", name, err)
		}
	}

	r.vcr, err = recorder.New(path,
		recorder.WithMode(vcrMode),
		recorder.WithRealTransport(network),
		recorder.WithMatcher(cfg.matcher()),
		recorder.WithPassthrough(func(req *http.Request) bool {
			return cfg.ignored(req.URL.Hostname())
		}),
		recorder.WithHook(r.capture, recorder.AfterCaptureHook),
		recorder.WithSkipRequestLatency(true),
		recorder.WithReplayableInteractions(cfg.AllowPlaybackRepeats),
	)
	if err != nil {
		_ = os.RemoveAll(r.workDir)
		return nil, fmt.Errorf("opening cassette %q: %w", name, err)
	}

	r.logger.Debug("cassette loaded", "mode", mode, "exists", exists, "interactions", len(r.existing))

	return r, nil
}

var vcrModes = map[model.RecordMode]recorder.Mode{
	model.RecordModeNone:        recorder.ModeReplayOnly,
	model.RecordModeOnce:        recorder.ModeRecordOnce,
	model.RecordModeNewEpisodes: recorder.ModeReplayWithNewEpisodes,
	model.RecordModeAll:         recorder.ModeRecordOnly,
}

// Name returns the cassette name.
func (r *Recorder) Name() string {
	return r.name
}

// Recording reports whether requests without a recorded match go to the network.
func (r *Recorder) Recording() bool {
	return r.record
}

// RoundTrip replays a matching interaction or, when recording, performs and
// captures the request.
func (r *Recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := r.vcr.RoundTrip(req)
	if errors.Is(err, vcr.ErrInteractionNotFound) {
		return nil, fmt.Errorf("%w: %s %s (cassette %q, mode %s)", ErrInteractionNotFound, req.Method, req.URL, r.name, r.mode)
	}
	return resp, err
}

// capture runs on every interaction fetched from the network, before go-vcr
// hands the response back. It redacts headers, decodes the body and keeps a
// copy for the store.
func (r *Recorder) capture(i *vcr.Interaction) error {
	i.Request.Headers = r.cfg.filterHeaders(i.Request.Headers)

	if r.cfg.DecodeCompressedResponse {
		encoding := i.Response.Headers.Get("Content-Encoding")
		decoded, ok, err := decodeBody(encoding, []byte(i.Response.Body))
		if err != nil {
			return fmt.Errorf("decoding %s response: %w", encoding, err)
		}
		if ok {
			if i.Response.Headers == nil {
				i.Response.Headers = http.Header{}
			}
			i.Response.Body = string(decoded)
			i.Response.ContentLength = int64(len(decoded))
			i.Response.Headers.Del("Content-Encoding")
			i.Response.Headers.Set("Content-Length", strconv.Itoa(len(decoded)))
		}
	}

	in := fromVCR(i)
	in.ID = ulid.Make().String()
	in.RecordedAt = time.Now().UTC()

	r.mu.Lock()
	r.recorded = append(r.recorded, in)
	r.mu.Unlock()

	r.logger.Debug("interaction recorded", "method", in.Request.Method, "uri", in.Request.URI, "status", in.Response.StatusCode)
	return nil
}

// Stop persists newly recorded interactions after the existing ones. It is a
// no-op for the store when nothing was recorded, and calling it more than once
// is safe.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return nil
	}
	r.stopped = true
	defer func() { _ = os.RemoveAll(r.workDir) }()

	if err := r.vcr.Stop(); err != nil {
		return fmt.Errorf("stopping cassette %q: %w", r.name, err)
	}
	if len(r.recorded) == 0 {
		return nil
	}

	interactions := make([]model.Interaction, 0, len(r.existing)+len(r.recorded))
	interactions = append(interactions, r.existing...)
	interactions = append(interactions, r.recorded...)

	if err := r.store.Save(ctx, &model.Cassette{Name: r.name, Interactions: interactions}); err != nil {
		return fmt.Errorf("saving cassette %q: %w", r.name, err)
	}

	r.logger.Info("cassette saved", "recorded", len(r.recorded), "total", len(interactions))
	return nil
}

func toVCR(in model.Interaction) *vcr.Interaction {
	status := in.Response.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", in.Response.StatusCode, http.StatusText(in.Response.StatusCode))
	}
	reqHeaders := in.Request.Headers.Clone()
	if reqHeaders == nil {
		reqHeaders = http.Header{}
	}
	respHeaders := in.Response.Headers.Clone()
	if respHeaders == nil {
		respHeaders = http.Header{}
	}

	return &vcr.Interaction{
		Request: vcr.Request{
			Method:  in.Request.Method,
			URL:     in.Request.URI,
			Headers: reqHeaders,
			Body:    in.Request.Body,
		},
		Response: vcr.Response{
			Proto:         "HTTP/1.1",
			ProtoMajor:    1,
			ProtoMinor:    1,
			Status:        status,
			Code:          in.Response.StatusCode,
			Headers:       respHeaders,
			Body:          in.Response.Body,
			ContentLength: int64(len(in.Response.Body)),
		},
	}
}

func fromVCR(i *vcr.Interaction) model.Interaction {
	return model.Interaction{
		Request: model.RecordedRequest{
			Method:  i.Request.Method,
			URI:     i.Request.URL,
			Headers: i.Request.Headers.Clone(),
			Body:    i.Request.Body,
		},
		Response: model.RecordedResponse{
			StatusCode: i.Response.Code,
			Status:     i.Response.Status,
			Headers:    i.Response.Headers.Clone(),
			Body:       i.Response.Body,
		},
	}
}
