// Package awsconf loads the shared AWS SDK configuration used by the
// S3, SQS and Secrets Manager adapters.
package awsconf

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/fairyhunter13/bucketscan/internal/config"
)

// Load resolves credentials and region from the ambient AWS environment.
// Every SDK client built from the returned config shares one tuned HTTP
// client and emits OpenTelemetry spans per AWS API call.
func Load(ctx context.Context, cfg config.Config) (aws.Config, error) {
	httpClient := awshttp.NewBuildableClient().WithTransportOptions(func(t *http.Transport) {
		t.MaxIdleConns = 100
		t.MaxIdleConnsPerHost = 32
	})
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithHTTPClient(httpClient),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("op=awsconf.load: %w", err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)
	return awsCfg, nil
}
