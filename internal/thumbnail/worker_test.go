package thumbnail

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/quicksend/quicksend/internal/file"
	"go.uber.org/zap"
)

func TestProcessSkipsNonImage(t *testing.T) {
	blobs := &fakeObjectStore{t: t}
	records := &fakeRecordStore{}
	worker := NewWorker(blobs, records, 200, 200, zap.NewNop())

	err := worker.Process(context.Background(), file.UploadedEvent{
		FileID:      uuid.NewString(),
		ObjectName:  "files/report.pdf",
		ContentType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if blobs.fetches != 0 || blobs.stores != 0 {
		t.Fatalf("expected zero blob operations, got %d fetches %d stores", blobs.fetches, blobs.stores)
	}
	if records.updates != 0 {
		t.Fatalf("expected zero metadata writes, got %d", records.updates)
	}
}

func TestProcessSkipsOwnOutput(t *testing.T) {
	blobs := &fakeObjectStore{t: t}
	records := &fakeRecordStore{}
	worker := NewWorker(blobs, records, 200, 200, zap.NewNop())

	err := worker.Process(context.Background(), file.UploadedEvent{
		FileID:      uuid.NewString(),
		ObjectName:  "files/thumb_photo.png",
		ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if blobs.fetches != 0 || blobs.stores != 0 || records.updates != 0 {
		t.Fatalf("expected no side effects for thumbnail input")
	}
}

func TestProcessSkipsMissingFileID(t *testing.T) {
	blobs := &fakeObjectStore{t: t}
	records := &fakeRecordStore{}
	worker := NewWorker(blobs, records, 200, 200, zap.NewNop())

	err := worker.Process(context.Background(), file.UploadedEvent{
		ObjectName:  "files/photo.png",
		ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if blobs.fetches != 0 || blobs.stores != 0 || records.updates != 0 {
		t.Fatalf("expected no side effects without a record id")
	}
}

func TestProcessGeneratesBoundedThumbnail(t *testing.T) {
	blobs := &fakeObjectStore{t: t, original: buildPNG(t, 800, 600)}
	records := &fakeRecordStore{}
	worker := NewWorker(blobs, records, 200, 200, zap.NewNop())

	fileID := uuid.New()
	err := worker.Process(context.Background(), file.UploadedEvent{
		FileID:      fileID.String(),
		ObjectName:  "files/photo.png",
		ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if blobs.storedObject != "files/thumb_photo.png" {
		t.Fatalf("unexpected thumbnail object name: %s", blobs.storedObject)
	}
	if blobs.storedWidth > 200 || blobs.storedHeight > 200 {
		t.Fatalf("thumbnail exceeds bounds: %dx%d", blobs.storedWidth, blobs.storedHeight)
	}
	// 800x600 fit into 200x200 keeps the 4:3 aspect ratio.
	if blobs.storedWidth != 200 || blobs.storedHeight != 150 {
		t.Fatalf("expected 200x150 thumbnail, got %dx%d", blobs.storedWidth, blobs.storedHeight)
	}

	if records.updates != 1 {
		t.Fatalf("expected one metadata write, got %d", records.updates)
	}
	if records.lastID != fileID || records.lastPath != "files/thumb_photo.png" {
		t.Fatalf("unexpected record update: %s %s", records.lastID, records.lastPath)
	}
}

func TestProcessNeverUpscales(t *testing.T) {
	blobs := &fakeObjectStore{t: t, original: buildPNG(t, 64, 48)}
	records := &fakeRecordStore{}
	worker := NewWorker(blobs, records, 200, 200, zap.NewNop())

	err := worker.Process(context.Background(), file.UploadedEvent{
		FileID:      uuid.NewString(),
		ObjectName:  "files/tiny.png",
		ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if blobs.storedWidth != 64 || blobs.storedHeight != 48 {
		t.Fatalf("small image was resized: %dx%d", blobs.storedWidth, blobs.storedHeight)
	}
}

// --- helpers & fakes ---

func buildPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	tmp, err := os.CreateTemp(t.TempDir(), "src-*.png")
	if err != nil {
		t.Fatalf("create temp png: %v", err)
	}
	defer tmp.Close()
	if err := png.Encode(tmp, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	data, err := os.ReadFile(tmp.Name())
	if err != nil {
		t.Fatalf("read temp png: %v", err)
	}
	return data
}

type fakeObjectStore struct {
	t            *testing.T
	original     []byte
	fetches      int
	stores       int
	storedObject string
	storedWidth  int
	storedHeight int
}

func (f *fakeObjectStore) FGet(ctx context.Context, objectName, localPath string) error {
	f.fetches++
	return os.WriteFile(localPath, f.original, 0o600)
}

func (f *fakeObjectStore) FPut(ctx context.Context, objectName, localPath, contentType string) error {
	f.stores++
	f.storedObject = objectName

	img, err := imaging.Open(localPath)
	if err != nil {
		f.t.Fatalf("stored thumbnail not decodable: %v", err)
	}
	bounds := img.Bounds()
	f.storedWidth = bounds.Dx()
	f.storedHeight = bounds.Dy()
	return nil
}

type fakeRecordStore struct {
	updates  int
	lastID   uuid.UUID
	lastPath string
}

func (f *fakeRecordStore) SetThumbnailPath(ctx context.Context, id uuid.UUID, thumbnailPath string) error {
	f.updates++
	f.lastID = id
	f.lastPath = thumbnailPath
	return nil
}
