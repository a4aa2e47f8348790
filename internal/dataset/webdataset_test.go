package dataset

import (
	"archive/tar"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

type shardEntry struct {
	key      string
	imageExt string
	image    []byte
	label    int
	noLabel  bool
}

func TestReadShardPairsEntries(t *testing.T) {
	shard := writeShard(t, t.TempDir(), "shard-000000.tar", []shardEntry{
		{key: "000001", imageExt: ".jpg", image: []byte("jpeg"), label: 3},
		{key: "000002", imageExt: ".png", image: []byte("png"), label: 7},
	})

	records, err := ReadShard(context.Background(), shard, 4)
	if err != nil {
		t.Fatalf("ReadShard returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Key != "000001" || records[0].Label != 3 || string(records[0].Image) != "jpeg" {
		t.Fatalf("unexpected first record %+v", records[0])
	}
	if records[1].Key != "000002" || records[1].Label != 7 {
		t.Fatalf("unexpected second record %+v", records[1])
	}
}

func TestReadShardIncomplete(t *testing.T) {
	shard := writeShard(t, t.TempDir(), "shard-000000.tar", []shardEntry{
		{key: "000001", imageExt: ".png", image: []byte("png"), label: 1},
		{key: "000002", imageExt: ".png", image: []byte("png"), noLabel: true},
	})
	if _, err := ReadShard(context.Background(), shard, 4); err == nil {
		t.Fatalf("expected incomplete record error")
	}
}

func TestReadShardPendingOverflow(t *testing.T) {
	shard := writeShard(t, t.TempDir(), "shard-000000.tar", []shardEntry{
		{key: "a", imageExt: ".png", image: []byte("a"), noLabel: true},
		{key: "b", imageExt: ".png", image: []byte("b"), noLabel: true},
		{key: "c", imageExt: ".png", image: []byte("c"), noLabel: true},
	})
	_, err := ReadShard(context.Background(), shard, 2)
	if !errors.Is(err, ErrPendingOverflow) {
		t.Fatalf("expected ErrPendingOverflow, got %v", err)
	}
}

func TestReadShardCancelled(t *testing.T) {
	shard := writeShard(t, t.TempDir(), "shard-000000.tar", []shardEntry{
		{key: "a", imageExt: ".png", image: []byte("a"), label: 0},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ReadShard(ctx, shard, 2); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func writeShard(t *testing.T, dir, name string, entries []shardEntry) string {
	t.Helper()
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	for _, e := range entries {
		addTarEntry(t, tw, e.key+e.imageExt, e.image)
		if !e.noLabel {
			addTarEntry(t, tw, e.key+".cls", []byte(strconv.Itoa(e.label)))
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write shard: %v", err)
	}
	return path
}

func addTarEntry(t *testing.T, tw *tar.Writer, name string, data []byte) {
	t.Helper()
	hdr := &tar.Header{Name: name, Size: int64(len(data)), Mode: 0o644}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if _, err := tw.Write(data); err != nil {
		t.Fatalf("write data: %v", err)
	}
}

// grayPNG encodes a size x size image filled with value.
func grayPNG(t *testing.T, size int, value uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetGray(x, y, color.Gray{Y: value})
		}
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestPairerJoinsEitherOrder(t *testing.T) {
	p := newPairer(4)
	if _, ok, err := p.add("shard/a.cls", strings.NewReader(" 3\n")); ok || err != nil {
		t.Fatalf("label alone: ok=%v err=%v", ok, err)
	}
	if _, ok, err := p.add("a.json", strings.NewReader("{}")); ok || err != nil {
		t.Fatalf("unknown extension: ok=%v err=%v", ok, err)
	}
	rec, ok, err := p.add("shard/a.PNG", strings.NewReader("img"))
	if err != nil || !ok {
		t.Fatalf("expected completed record, ok=%v err=%v", ok, err)
	}
	if rec.Key != "a" || rec.Label != 3 || string(rec.Image) != "img" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if len(p.pending) != 0 {
		t.Fatalf("expected no pending keys, got %d", len(p.pending))
	}
	if _, _, err := p.add("b.cls", strings.NewReader("x")); err == nil {
		t.Fatalf("expected label parse error")
	}
}
