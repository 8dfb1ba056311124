package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maauso/media-compiler/internal/media"
	"github.com/maauso/media-compiler/internal/session"
)

// ErrIgnored marks files past the first in an audio batch.
var ErrIgnored = errors.New("only the first audio file of a batch is used")

// UnsupportedFileTypeError reports a file whose type the channel does not accept.
type UnsupportedFileTypeError struct {
	Name     string
	MIMEType string
	Channel  Channel
}

func (e *UnsupportedFileTypeError) Error() string {
	t := e.MIMEType
	if t == "" {
		t = "unknown"
	}
	return fmt.Sprintf("unsupported file type %s for %s (channel %s)", t, e.Name, e.Channel)
}

// File is a single submitted file.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Outcome is the result of processing one file.
type Outcome struct {
	Name     string   `json:"name"`
	MIMEType string   `json:"mime_type,omitempty"`
	Kind     Kind     `json:"kind"`
	Accepted bool     `json:"accepted"`
	Warning  string   `json:"warning,omitempty"`
	Evicted  []string `json:"evicted,omitempty"`
	Err      error    `json:"-"`
}

// Result is the outcome of a batch.
type Result struct {
	Outcomes []Outcome        `json:"files"`
	Session  session.Snapshot `json:"session"`
}

// Accepted returns the number of files that entered the session.
func (r Result) Accepted() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Accepted {
			n++
		}
	}
	return n
}

// Warnings returns the user-facing warnings of the batch, deduplicated and in order.
func (r Result) Warnings() []string {
	var out []string
	seen := make(map[string]bool)
	for _, o := range r.Outcomes {
		if o.Warning == "" || seen[o.Warning] {
			continue
		}
		seen[o.Warning] = true
		out = append(out, o.Warning)
	}
	return out
}

// Service routes submitted files into a session.
type Service struct {
	session    *session.Session
	normalizer media.Normalizer
	logger     *slog.Logger
	width      int
	height     int
}

// Option configures a Service.
type Option func(*Service)

// WithTargetSize sets the frame size still images are normalized to.
func WithTargetSize(width, height int) Option {
	return func(s *Service) {
		if width > 0 && height > 0 {
			s.width = width
			s.height = height
		}
	}
}

// NewService creates a new intake Service.
func NewService(sess *session.Session, normalizer media.Normalizer, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		session:    sess,
		normalizer: normalizer,
		logger:     logger,
		width:      media.DefaultWidth,
		height:     media.DefaultHeight,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit processes a batch of files arriving through channel ch.
// Each file is handled independently; a failing file never aborts the batch.
func (s *Service) Submit(ctx context.Context, ch Channel, files []File) Result {
	res := Result{Outcomes: make([]Outcome, 0, len(files))}

	for i, f := range files {
		if ch == ChannelAudio && i > 0 {
			res.Outcomes = append(res.Outcomes, Outcome{
				Name: f.Name,
				Kind: Classify(DetectType(f.MIMEType, f.Data)),
				Err:  ErrIgnored,
			})
			continue
		}
		if err := ctx.Err(); err != nil {
			res.Outcomes = append(res.Outcomes, Outcome{Name: f.Name, Kind: KindRejected, Err: err})
			continue
		}
		res.Outcomes = append(res.Outcomes, s.submitOne(ctx, ch, f))
	}

	res.Session = s.session.Snapshot()
	return res
}

func (s *Service) submitOne(ctx context.Context, ch Channel, f File) Outcome {
	mimeType := DetectType(f.MIMEType, f.Data)
	kind := Classify(mimeType)
	out := Outcome{Name: f.Name, MIMEType: mimeType, Kind: kind}

	if !ch.Accepts(kind) {
		out.Kind = KindRejected
		out.Err = &UnsupportedFileTypeError{Name: f.Name, MIMEType: mimeType, Channel: ch}
		out.Warning = ch.rejectionMessage()
		s.logger.Warn("file rejected",
			slog.String("name", f.Name),
			slog.String("mime_type", mimeType),
			slog.String("channel", string(ch)),
		)
		return out
	}

	asset := media.Asset{Name: f.Name, MIMEType: mimeType, Data: f.Data}

	var (
		evicted []string
		err     error
	)
	switch kind {
	case KindMotionClip:
		evicted, err = s.session.SetMotionClip(asset)
	case KindAudio:
		evicted, err = s.session.SetAudio(asset)
	case KindStillImage:
		normalized, nerr := s.normalizer.Normalize(ctx, asset, s.width, s.height)
		if nerr != nil {
			s.logger.Error("image normalization failed",
				slog.String("name", f.Name),
				slog.String("error", nerr.Error()),
			)
			out.Err = nerr
			out.Warning = fmt.Sprintf("Could not process image %s.", f.Name)
			return out
		}
		evicted, err = s.session.AppendImage(normalized)
	}

	if err != nil {
		out.Err = err
		out.Warning = err.Error()
		return out
	}

	out.Accepted = true
	out.Evicted = evicted
	s.logger.Info("file accepted",
		slog.String("name", f.Name),
		slog.String("kind", string(kind)),
		slog.Int("size", asset.Size()),
	)
	if len(evicted) > 0 {
		s.logger.Info("assets replaced", slog.String("name", f.Name), slog.Any("evicted", evicted))
	}
	return out
}
