// Package awssm resolves database credentials from AWS Secrets Manager.
//
// Deployments that store the Postgres DSN (or an RDS credential document)
// in a secret set DB_SECRET_ID; the resolved DSN then overrides DB_URL.
package awssm

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// API is the slice of the Secrets Manager client the adapter needs.
type API interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Client reads secrets through the AWS SDK.
type Client struct {
	api API
}

// New builds a Client from the shared AWS configuration.
func New(cfg aws.Config) *Client {
	return &Client{api: secretsmanager.NewFromConfig(cfg)}
}

// dbCredential is the JSON document RDS-managed secrets use. Port arrives
// as a number from RDS and as a string from hand-written secrets.
type dbCredential struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Host     string      `json:"host"`
	Port     json.Number `json:"port"`
	DBName   string      `json:"dbname"`
}

// DatabaseDSN fetches the secret and returns a Postgres DSN. Secrets may
// hold either a complete DSN string or an RDS credential document; both
// forms are normalized to a URL with the sslmode the caller requires.
func (c *Client) DatabaseDSN(ctx context.Context, secretID string, requireTLS bool) (string, error) {
	out, err := c.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", fmt.Errorf("op=secrets.get_value: %w", err)
	}
	raw := strings.TrimSpace(aws.ToString(out.SecretString))
	if raw == "" {
		return "", fmt.Errorf("op=secrets.get_value: secret %s has no string value", secretID)
	}
	if strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://") {
		return withSSLMode(raw, requireTLS)
	}

	var cred dbCredential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return "", fmt.Errorf("op=secrets.parse: %w", err)
	}
	if cred.Username == "" || cred.Host == "" || cred.DBName == "" {
		return "", fmt.Errorf("op=secrets.parse: secret %s is missing username, host or dbname", secretID)
	}
	port := cred.Port.String()
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cred.Username, cred.Password),
		Host:     net.JoinHostPort(cred.Host, port),
		Path:     "/" + cred.DBName,
		RawQuery: "sslmode=" + sslMode(requireTLS),
	}
	return u.String(), nil
}

// withSSLMode forces the sslmode query parameter on an existing DSN.
func withSSLMode(dsn string, requireTLS bool) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("op=secrets.parse: %w", err)
	}
	q := u.Query()
	q.Set("sslmode", sslMode(requireTLS))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func sslMode(requireTLS bool) string {
	if requireTLS {
		return "require"
	}
	return "disable"
}
