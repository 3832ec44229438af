package s3storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/ilkoid/poncho-research/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listResponse = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>archive</Name>
  <Prefix>traces/</Prefix>
  <KeyCount>2</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents>
    <Key>traces/research_old.json</Key>
    <LastModified>2026-01-01T10:00:00.000Z</LastModified>
    <ETag>"old"</ETag>
    <Size>10</Size>
    <StorageClass>STANDARD</StorageClass>
  </Contents>
  <Contents>
    <Key>traces/research_new.json</Key>
    <LastModified>2026-02-01T10:00:00.000Z</LastModified>
    <ETag>"new"</ETag>
    <Size>20</Size>
    <StorageClass>STANDARD</StorageClass>
  </Contents>
</ListBucketResult>`

// fakeS3 минимально отвечает на PUT/GET объекта и листинг бакета.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		if strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") {
			body = decodeAWSChunked(body)
		}
		f.objects[r.URL.Path] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, listResponse)

	case r.Method == http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("ETag", `"etag"`)
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2026 15:04:05 GMT")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// decodeAWSChunked снимает aws-chunked обёртку потоковой подписи:
// "<hex>;chunk-signature=...\r\n<data>\r\n", завершается чанком нулевой длины.
func decodeAWSChunked(body []byte) []byte {
	var out []byte
	for len(body) > 0 {
		header, rest, ok := bytes.Cut(body, []byte("\r\n"))
		if !ok {
			break
		}
		sizeHex, _, _ := bytes.Cut(header, []byte(";"))
		size, err := strconv.ParseInt(string(sizeHex), 16, 64)
		if err != nil || size == 0 || int64(len(rest)) < size {
			break
		}
		out = append(out, rest[:size]...)
		body = bytes.TrimPrefix(rest[size:], []byte("\r\n"))
	}
	return out
}

func newTestClient(t *testing.T) (*Client, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: make(map[string][]byte)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := New(config.S3Config{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		Region:    "us-east-1",
		AccessKey: "ak",
		SecretKey: "sk",
		Bucket:    "archive",
		Prefix:    "traces/",
	})
	require.NoError(t, err)
	return client, fake
}

func TestKey(t *testing.T) {
	c := &Client{prefix: "traces/"}
	assert.Equal(t, "traces/research_1.json", c.Key("research_1.json"))

	c.prefix = ""
	assert.Equal(t, "research_1.json", c.Key("research_1.json"))
}

func TestUploadAndDownload(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	key, err := client.Upload(ctx, "research_run-1.json", []byte(`{"run_id":"run-1"}`))
	require.NoError(t, err)
	assert.Equal(t, "traces/research_run-1.json", key)
	assert.Equal(t, `{"run_id":"run-1"}`, string(fake.objects["/archive/traces/research_run-1.json"]))

	data, err := client.Download(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"run_id":"run-1"}`, string(data))
}

func TestListTracesNewestFirst(t *testing.T) {
	client, _ := newTestClient(t)

	objects, err := client.ListTraces(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "traces/research_new.json", objects[0].Key)
	assert.Equal(t, int64(20), objects[0].Size)
	assert.Equal(t, "traces/research_old.json", objects[1].Key)
}
