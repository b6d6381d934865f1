package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"school-manager/config"
)

// S3Service 备份对象存储服务
type S3Service struct {
	client *s3.Client
	bucket string
	region string
	prefix string
}

func NewS3Service(cfg *config.StorageConfig) (*S3Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx := context.TODO()

	var awsCfg aws.Config
	var err error

	if cfg.S3Endpoint != "" {
		// 自定义endpoint（如MinIO）
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:           cfg.S3Endpoint,
					SigningRegion: cfg.S3Region,
				}, nil
			})

		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithEndpointResolverWithOptions(customResolver),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(
					cfg.S3AccessKey,
					cfg.S3SecretKey,
					"",
				),
			),
		)
	} else {
		// 标准AWS S3
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(
					cfg.S3AccessKey,
					cfg.S3SecretKey,
					"",
				),
			),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	return &S3Service{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.S3Bucket,
		region: cfg.S3Region,
		prefix: cfg.S3Prefix,
	}, nil
}

// Bucket 当前使用的存储桶
func (s *S3Service) Bucket() string {
	return s.bucket
}

// BackupKey 生成备份文件的对象键
func (s *S3Service) BackupKey(fileName string) string {
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(s.prefix, "/"), fileName)
}

// UploadBackup 上传备份文件
func (s *S3Service) UploadBackup(ctx context.Context, s3Key string, body io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s3Key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

// DownloadBackup 下载备份文件
func (s *S3Service) DownloadBackup(ctx context.Context, s3Key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}

	return data, nil
}

// DeleteBackup 删除备份对象
func (s *S3Service) DeleteBackup(ctx context.Context, s3Key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3Key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// GetPresignedURL 获取预签名下载URL（用于管理端直接下载备份）
func (s *S3Service) GetPresignedURL(ctx context.Context, s3Key string, expiration time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)

	request, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3Key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiration
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return request.URL, nil
}

// TestConnection 测试S3连通性
func (s *S3Service) TestConnection(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("S3连接测试失败: %w", err)
	}
	return nil
}
