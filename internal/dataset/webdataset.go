package dataset

import (
	"archive/tar"
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Record is an image/label pair read from a WebDataset shard.
type Record struct {
	Key   string
	Image []byte
	Label int
}

// ErrPendingOverflow indicates the pairing map exceeded the configured bound.
var ErrPendingOverflow = errors.New("webdataset: pending pair buffer exceeded")

const defaultPendingCap = 1024

// StreamShard streams paired records from the tar shard at path. Entries
// sharing a key ("000123.png" and "000123.cls") are joined into one Record.
// The error channel receives at most one error and is closed after the
// record channel.
func StreamShard(ctx context.Context, path string, pendingCap int) (<-chan Record, <-chan error) {
	if pendingCap <= 0 {
		pendingCap = defaultPendingCap
	}
	out := make(chan Record)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(out)

		f, err := os.Open(path)
		if err != nil {
			errCh <- errors.Wrap(err, "webdataset: open shard")
			return
		}
		defer f.Close()

		tr := tar.NewReader(bufio.NewReader(f))
		pairs := newPairer(pendingCap)
		for {
			if err := ctx.Err(); err != nil {
				errCh <- err
				return
			}
			hdr, err := tr.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				errCh <- errors.Wrapf(err, "webdataset: read %s", path)
				return
			}
			if hdr.FileInfo().IsDir() {
				continue
			}
			rec, ok, err := pairs.add(hdr.Name, tr)
			if err != nil {
				errCh <- err
				return
			}
			if !ok {
				continue
			}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- rec:
			}
		}
		if n := len(pairs.pending); n > 0 {
			errCh <- errors.Errorf("webdataset: %s has %d incomplete records", path, n)
		}
	}()

	return out, errCh
}

// pairer joins the image and label entries of a key into one Record.
type pairer struct {
	limit   int
	pending map[string]*Record
	labeled map[string]bool
}

func newPairer(limit int) *pairer {
	return &pairer{
		limit:   limit,
		pending: make(map[string]*Record),
		labeled: make(map[string]bool),
	}
}

// add consumes one tar entry. It returns the completed Record once both
// halves of a key have been seen. Unknown extensions are ignored.
func (p *pairer) add(name string, r io.Reader) (Record, bool, error) {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	key := strings.TrimSuffix(base, ext)

	var image []byte
	var label int
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg", ".png":
		data, err := io.ReadAll(r)
		if err != nil {
			return Record{}, false, errors.Wrapf(err, "webdataset: read image %s", base)
		}
		image = data
	case ".cls":
		payload, err := io.ReadAll(r)
		if err != nil {
			return Record{}, false, errors.Wrapf(err, "webdataset: read label %s", base)
		}
		if label, err = strconv.Atoi(strings.TrimSpace(string(payload))); err != nil {
			return Record{}, false, errors.Wrapf(err, "webdataset: parse label %s", base)
		}
	default:
		return Record{}, false, nil
	}

	rec, ok := p.pending[key]
	if !ok {
		rec = &Record{Key: key}
		p.pending[key] = rec
	}
	if image != nil {
		rec.Image = image
	} else {
		rec.Label = label
		p.labeled[key] = true
	}
	if len(p.pending) > p.limit {
		return Record{}, false, ErrPendingOverflow
	}
	if len(rec.Image) == 0 || !p.labeled[key] {
		return Record{}, false, nil
	}
	delete(p.pending, key)
	delete(p.labeled, key)
	return *rec, true, nil
}

// ReadShard drains StreamShard into a slice, in file order.
func ReadShard(ctx context.Context, path string, pendingCap int) ([]Record, error) {
	records, errCh := StreamShard(ctx, path, pendingCap)
	var out []Record
	for r := range records {
		out = append(out, r)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return out, nil
}
