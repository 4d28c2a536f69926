package bedrock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/kbukum/chatstream/httpclient"
)

const signingService = "bedrock"

// LoadAWSConfig resolves region and credentials. Static keys from cfg take
// precedence over the default chain.
func LoadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.StaticCredentials() {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	return awsCfg, nil
}

// Signer signs requests with SigV4 for the bedrock service.
type Signer struct {
	creds  aws.CredentialsProvider
	region string
	signer *v4.Signer
	now    func() time.Time
}

var _ httpclient.Signer = (*Signer)(nil)

// NewSigner creates a signer drawing credentials from creds.
func NewSigner(creds aws.CredentialsProvider, region string) *Signer {
	return &Signer{
		creds:  aws.NewCredentialsCache(creds),
		region: region,
		signer: v4.NewSigner(),
		now:    time.Now,
	}
}

// Sign adds the SigV4 authorization headers to req.
func (s *Signer) Sign(ctx context.Context, req *http.Request, body []byte) error {
	creds, err := s.creds.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("retrieve aws credentials: %w", err)
	}
	sum := sha256.Sum256(body)
	return s.signer.SignHTTP(ctx, creds, req, hex.EncodeToString(sum[:]), signingService, s.region, s.now())
}

// Check retrieves credentials once and returns their expiry, zero when they
// do not expire.
func (s *Signer) Check(ctx context.Context) (time.Time, error) {
	creds, err := s.creds.Retrieve(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if !creds.CanExpire {
		return time.Time{}, nil
	}
	return creds.Expires, nil
}
