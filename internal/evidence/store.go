// Package evidence guarda os prints de placar enviados pelos jogadores
// num bucket S3 compatível (AWS, R2, MinIO) antes da verificação.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// MaxImageSize limita cada upload
const MaxImageSize = 10 << 20

var (
	ErrUnsupportedType = errors.New("unsupported evidence content type")
	ErrTooLarge        = errors.New("evidence exceeds size limit")
)

var allowedTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// PutObjectAPI é a parte do client S3 usada aqui
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configura o bucket. Endpoint vazio usa a AWS.
type Options struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	PublicURL string
}

// S3Store envia objetos via PutObject e devolve a URL pública
type S3Store struct {
	api       PutObjectAPI
	bucket    string
	publicURL string
}

// NewS3 carrega a configuração da AWS; com Endpoint definido usa path-style (R2/MinIO)
func NewS3(ctx context.Context, o Options) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(o.Region)}
	if o.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		}
	})

	public := o.PublicURL
	if public == "" {
		if o.Endpoint != "" {
			public = strings.TrimRight(o.Endpoint, "/") + "/" + o.Bucket
		} else {
			public = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", o.Bucket, o.Region)
		}
	}
	return NewS3Store(client, o.Bucket, public), nil
}

func NewS3Store(api PutObjectAPI, bucket, publicURL string) *S3Store {
	return &S3Store{api: api, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}
}

// Put grava a imagem em challenges/<id>/<submitter>/<uuid><ext>
func (s *S3Store) Put(ctx context.Context, challengeID, submitter, contentType string, size int64, body io.Reader) (string, error) {
	key, err := objectKey(challengeID, submitter, contentType, size)
	if err != nil {
		return "", err
	}
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("put evidence %s: %w", key, err)
	}
	return s.publicURL + "/" + key, nil
}

func objectKey(challengeID, submitter, contentType string, size int64) (string, error) {
	ext, ok := allowedTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	if size > MaxImageSize {
		return "", ErrTooLarge
	}
	return path.Join("challenges", challengeID, submitter, uuid.NewString()+ext), nil
}

// Memory guarda os bytes em memória (testes e STORE=memory)
type Memory struct {
	mu      sync.Mutex
	Objects map[string][]byte
}

func NewMemory() *Memory { return &Memory{Objects: map[string][]byte{}} }

func (m *Memory) Put(_ context.Context, challengeID, submitter, contentType string, size int64, body io.Reader) (string, error) {
	key, err := objectKey(challengeID, submitter, contentType, size)
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(io.LimitReader(body, MaxImageSize+1))
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.Objects[key] = b
	m.mu.Unlock()
	return "memory://" + key, nil
}
