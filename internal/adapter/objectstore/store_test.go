package objectstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dadoscon/municipal-etl/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, string(b))
	return &s3.PutObjectOutput{}, nil
}

func testStore(client putObjectAPI, publicBase string) *Store {
	return &Store{
		client:        client,
		bucket:        "exports",
		endpoint:      "https://storage.example.com",
		publicBaseURL: publicBase,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestNew_NotConfigured(t *testing.T) {
	_, err := New(&config.Config{S3Endpoint: "https://storage.example.com"}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNew_Configured(t *testing.T) {
	s, err := New(&config.Config{
		S3Endpoint:        "https://storage.example.com/",
		S3AccessKeyID:     "key",
		S3SecretAccessKey: "secret",
		S3Bucket:          "exports",
		S3Region:          "auto",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example.com", s.endpoint)
	assert.Equal(t, "https://storage.example.com/exports/a.csv", s.objectURL("/a.csv"))
}

func TestUpload(t *testing.T) {
	fake := &fakeS3{}
	s := testStore(fake, "https://cdn.example.com")

	url, err := s.Upload(context.Background(), "populacao/a.csv", strings.NewReader("x;y\n"), 4, "text/csv")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/exports/populacao/a.csv", url)

	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, "exports", aws.ToString(in.Bucket))
	assert.Equal(t, "populacao/a.csv", aws.ToString(in.Key))
	assert.Equal(t, int64(4), aws.ToInt64(in.ContentLength))
	assert.Equal(t, "x;y\n", fake.bodies[0])
}

func TestUpload_Errors(t *testing.T) {
	var nilStore *Store
	_, err := nilStore.Upload(context.Background(), "k", strings.NewReader(""), 1, "")
	assert.ErrorIs(t, err, ErrNotConfigured)

	s := testStore(&fakeS3{}, "")
	_, err = s.Upload(context.Background(), "k", strings.NewReader(""), 0, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty file")

	s = testStore(&fakeS3{err: errors.New("access denied")}, "")
	_, err = s.Upload(context.Background(), "k", strings.NewReader("x"), 1, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestUploadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "populacao_ibge_2024-05-01.xlsx")
	require.NoError(t, os.WriteFile(p, []byte("PK"), 0o600))

	fake := &fakeS3{}
	url, err := testStore(fake, "").UploadFile(context.Background(), "exports/2024-05-01", p)
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example.com/exports/exports/2024-05-01/populacao_ibge_2024-05-01.xlsx", url)
	assert.Equal(t, ContentType(p), aws.ToString(fake.inputs[0].ContentType))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv; charset=utf-8", ContentType("a.CSV"))
	assert.Equal(t, "application/octet-stream", ContentType("a.bin"))
}
