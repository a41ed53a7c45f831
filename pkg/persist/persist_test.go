package persist

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vango-go/vstore/pkg/store"
)

func TestMemoryBackend(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	data, err := m.Load(ctx, "missing")
	if err != nil || data != nil {
		t.Fatalf("Load(missing) = %v, %v; want nil, nil", data, err)
	}

	src := []byte("hello")
	if err := m.Save(ctx, "k", src); err != nil {
		t.Fatal(err)
	}
	src[0] = 'j'

	data, err = m.Load(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("Load = %q, want hello (Save must copy)", data)
	}
	if m.Count() != 1 {
		t.Errorf("Count = %d, want 1", m.Count())
	}

	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if m.Count() != 0 {
		t.Errorf("Count = %d after delete, want 0", m.Count())
	}

	m.Close()
	if err := m.Save(ctx, "k", nil); !errors.Is(err, ErrBackendClosed) {
		t.Errorf("Save after Close = %v, want ErrBackendClosed", err)
	}
}

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "snapshots")
	f := NewFileBackend(dir)

	data, err := f.Load(ctx, "cart")
	if err != nil || data != nil {
		t.Fatalf("Load(missing) = %v, %v; want nil, nil", data, err)
	}

	if err := f.Save(ctx, "cart", []byte(`[1,2]`)); err != nil {
		t.Fatal(err)
	}
	if err := f.Save(ctx, "cart", []byte(`[1,2,3]`)); err != nil {
		t.Fatal(err)
	}
	data, err = f.Load(ctx, "cart")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `[1,2,3]` {
		t.Errorf("Load = %s, want [1,2,3]", data)
	}

	if err := f.Delete(ctx, "cart"); err != nil {
		t.Fatal(err)
	}
	if err := f.Delete(ctx, "cart"); err != nil {
		t.Errorf("Delete of missing snapshot = %v, want nil", err)
	}
}

func TestFileBackendEscapesKeys(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := NewFileBackend(filepath.Join(dir, "inner"))

	if err := f.Save(ctx, "../escape", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.snapshot")); err == nil {
		t.Error("key escaped the backend directory")
	}
	data, err := f.Load(ctx, "../escape")
	if err != nil || string(data) != "x" {
		t.Errorf("Load = %q, %v", data, err)
	}
}

// fakeS3 is an in-memory S3API.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[*in.Bucket+"/"+*in.Key] = data
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	f.mu.Unlock()
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	f.mu.Unlock()
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Backend(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	b := NewS3Backend(client, "bucket", "stores/")

	data, err := b.Load(ctx, "counter")
	if err != nil || data != nil {
		t.Fatalf("Load(missing) = %v, %v; want nil, nil", data, err)
	}

	if err := b.Save(ctx, "counter", []byte("42")); err != nil {
		t.Fatal(err)
	}
	if _, ok := client.objects["bucket/stores/counter"]; !ok {
		t.Errorf("object not stored under prefixed key: %v", client.objects)
	}

	data, err = b.Load(ctx, "counter")
	if err != nil || string(data) != "42" {
		t.Errorf("Load = %q, %v; want 42", data, err)
	}

	if err := b.Delete(ctx, "counter"); err != nil {
		t.Fatal(err)
	}
	if len(client.objects) != 0 {
		t.Errorf("objects = %v after delete", client.objects)
	}

	client.putErr = errors.New("access denied")
	if err := b.Save(ctx, "counter", []byte("1")); err == nil {
		t.Error("expected save error")
	}
}

func TestBindRestoresAndSaves(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	if err := backend.Save(ctx, "items", []byte(`["a","b"]`)); err != nil {
		t.Fatal(err)
	}

	items := store.New([]string{})
	b, err := Bind[[]string](ctx, items, backend, "items")
	if err != nil {
		t.Fatalf("Bind error: %v", err)
	}
	if got := items.Value(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("restored value = %v, want [a b]", got)
	}

	items.Update(func(v []string) []string { return append(v, "c") })
	if err := b.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	data, _ := backend.Load(ctx, "items")
	if string(data) != `["a","b","c"]` {
		t.Errorf("saved = %s, want [\"a\",\"b\",\"c\"]", data)
	}
	if items.Listeners() != 0 {
		t.Errorf("Listeners() = %d after Close, want 0", items.Listeners())
	}

	// Changes after Close are not saved.
	items.Set(nil)
	data, _ = backend.Load(ctx, "items")
	if string(data) != `["a","b","c"]` {
		t.Errorf("saved = %s after Close, want unchanged", data)
	}
}

func TestBindWithoutSnapshotSavesCurrentValue(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	counter := store.New(7)

	b, err := Bind[int](ctx, counter, backend, "counter")
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	data, _ := backend.Load(ctx, "counter")
	if string(data) != "7" {
		t.Errorf("saved = %s, want 7", data)
	}
}

func TestBindDecodeError(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	backend.Save(ctx, "n", []byte("not a number"))

	_, err := Bind[int](ctx, store.New(0), backend, "n")
	if err == nil {
		t.Fatal("expected decode error")
	}
}

type failingBackend struct {
	*MemoryBackend
}

func (failingBackend) Save(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func TestBindReportsSaveErrors(t *testing.T) {
	ctx := context.Background()
	backend := failingBackend{MemoryBackend: NewMemoryBackend()}

	var mu sync.Mutex
	var reported []string
	b, err := Bind[int](ctx, store.New(1), backend, "n", WithErrorHandler(func(key string, err error) {
		mu.Lock()
		reported = append(reported, key)
		mu.Unlock()
	}))
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Close(); err == nil {
		t.Error("Close should return the save error")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(reported) == 0 || reported[0] != "n" {
		t.Errorf("reported = %v, want [n]", reported)
	}
}
