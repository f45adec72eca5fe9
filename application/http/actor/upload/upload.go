// Package upload stores request bodies on disk.
// A multipart request has each of its parts stored as a file of its own.
package upload

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dchest/uniuri"
	"github.com/me7398/monarch/application/http/actor/server"
	"github.com/me7398/monarch/application/http/semantic"
	"github.com/me7398/monarch/application/http/semantic/status"
	"github.com/me7398/monarch/application/http/webconn"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stored describes a file written for a request.
type Stored struct {
	Name  string // form field name, empty for a single body.
	File  string // path relative to the store directory.
	Bytes int64
}

type Metrics struct {
	Files *prometheus.CounterVec
	Bytes *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "upload"
	}

	f := promauto.With(reg)
	return &Metrics{
		Files: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_stored_total",
			Help:      "Files stored, by kind of body.",
		}, []string{"kind"}),
		Bytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_stored_total",
			Help:      "Decoded bytes stored, by kind of body.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) stored(kind string, n int64) {
	if m == nil {
		return
	}
	m.Files.WithLabelValues(kind).Inc()
	m.Bytes.WithLabelValues(kind).Add(float64(n))
}

// Store writes every request under a directory of its own inside dir.
type Store struct {
	dir     string
	logger  *slog.Logger
	metrics *Metrics
}

func NewStore(dir string, logger *slog.Logger, metrics *Metrics) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating store directory")
	}
	return &Store{dir: dir, logger: logger, metrics: metrics}, nil
}

// Handle is a [server.HandleFunc] answering with a plain text summary of what was stored.
func (s *Store) Handle(c *server.HandleContext, request *semantic.RequestHeader) *server.Response {
	id := uniuri.New()
	logger := s.logger.With("id", id, "target", request.Line.Target)

	if err := os.Mkdir(filepath.Join(s.dir, id), 0o755); err != nil {
		return c.Error(errors.Wrap(err, "creating request directory"))
	}

	var (
		stored []Stored
		err    error
	)
	if request.IsMultipart() {
		stored, err = s.storeParts(c.Conn(), id, request)
	} else {
		stored, err = s.storeBody(c.Conn(), id, request)
	}
	if err != nil {
		logger.Warn("storing request failed", "error", err, "stored", len(stored))
		return c.Error(err)
	}

	logger.Info("request stored", "files", len(stored))

	h := semantic.NewResponseHeader(status.OK)
	h.Set("Content-Type", "text/plain; charset=utf-8")
	return &server.Response{Header: h, Body: strings.NewReader(summary(id, stored))}
}

func (s *Store) storeBody(conn *webconn.Conn, id string, request *semantic.RequestHeader) ([]Stored, error) {
	file := filepath.Join(id, "body")
	n, err := s.write(file, func(w io.Writer) error {
		return conn.ReceiveBody(w, request)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.stored("body", n)
	return []Stored{{File: file, Bytes: n}}, nil
}

func (s *Store) storeParts(conn *webconn.Conn, id string, request *semantic.RequestHeader) ([]Stored, error) {
	b, err := conn.SkipPreamble(request)
	if err != nil {
		return nil, err
	}

	var stored []Stored
	for i := 0; b == webconn.NormalBoundary; i++ {
		var h semantic.BodyPartHeader
		if err := conn.ReceiveHeader(&h); err != nil {
			return stored, err
		}

		name, filename := partNames(&h)
		file := filepath.Join(id, fmt.Sprintf("%02d-%s", i, fileName(filename, name)))

		n, err := s.write(file, func(w io.Writer) error {
			var err error
			b, err = conn.ReceiveBodyPartBody(w, request, &h)
			return err
		})
		if err != nil {
			return stored, err
		}

		s.metrics.stored("part", n)
		stored = append(stored, Stored{Name: name, File: file, Bytes: n})
	}

	return stored, nil
}

// write creates file and fills it with receive.
func (s *Store) write(file string, receive func(w io.Writer) error) (int64, error) {
	f, err := os.Create(filepath.Join(s.dir, file))
	if err != nil {
		return 0, status.NewError(errors.Wrap(err, "creating file"), status.InternalServerError)
	}
	defer f.Close()

	w := &countingWriter{w: f}
	if err := receive(w); err != nil {
		return w.n, err
	}

	if err := f.Close(); err != nil {
		return w.n, status.NewError(errors.Wrap(err, "closing file"), status.InternalServerError)
	}
	return w.n, nil
}

func partNames(h *semantic.BodyPartHeader) (name, filename string) {
	_, params, err := h.Disposition()
	if err != nil {
		return "", ""
	}
	return params["name"], params["filename"]
}

// fileName picks a safe base name for a part.
func fileName(candidates ...string) string {
	for _, c := range candidates {
		base := filepath.Base(c)
		if c == "" || base == "." || base == ".." || base == string(filepath.Separator) {
			continue
		}
		return base
	}
	return "part"
}

func summary(id string, stored []Stored) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "stored %d file(s) as %s\n", len(stored), id)
	for _, st := range stored {
		fmt.Fprintf(&sb, "%s\t%s\t%d\n", st.Name, st.File, st.Bytes)
	}
	return sb.String()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.n += int64(n)
	return n, err
}
