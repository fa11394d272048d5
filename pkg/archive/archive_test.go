package archive

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/zlib"

	"github.com/Dimensional/GalaxyDL/pkg/gog"
	"github.com/Dimensional/GalaxyDL/pkg/store"
)

func newTestArchiver(t *testing.T, handler http.Handler) *Archiver {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	endpoints := gog.Endpoints{
		ContentSystem:      srv.URL,
		CDN:                srv.URL,
		ManifestsCollector: srv.URL,
	}
	client := gog.NewClient(srv.Client())
	session := &gog.StaticSession{Token: "test-token", Client: client, Endpoints: endpoints}

	a, err := New(store.New(t.TempDir()), client, session, Options{
		Workers:   2,
		Endpoints: endpoints,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func zlibCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
	return buf.Bytes()
}

func md5hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
