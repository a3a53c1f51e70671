// Package credentials resolves access keys for a provider namespace.
//
// Resolution order: explicit profile (AWS shared credentials files), then
// <NAMESPACE>_ACCESS_KEY / <NAMESPACE>_SECRET_KEY environment variables, then
// the generic AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY pair. A .env file in
// the working directory is loaded into the process environment on first use.
package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"
)

// Credentials is a resolved access/secret pair.
type Credentials struct {
	AccessKey    string
	SecretKey    string
	SessionToken string
}

// Resolver resolves credentials from an environment snapshot.
type Resolver struct {
	env map[string]string
}

// NewResolver creates a resolver over the process environment, loading a .env
// file first when one exists. A missing .env is not an error.
func NewResolver(envFile string) *Resolver {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load()
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	return &Resolver{env: env}
}

// NewResolverFromEnv creates a resolver over an explicit environment map.
func NewResolverFromEnv(env map[string]string) *Resolver {
	return &Resolver{env: env}
}

// Resolve returns credentials for the given namespace, optionally preferring a
// shared-credentials profile. The namespace is uppercased for variable lookup.
func (r *Resolver) Resolve(ctx context.Context, namespace, profile string) (Credentials, error) {
	if c, ok := r.fromProfile(ctx, profile); ok {
		return c, nil
	}
	if c, ok := r.fromNamespace(namespace); ok {
		return c, nil
	}
	if c, ok := r.fromAWSEnv(); ok {
		return c, nil
	}

	ns := strings.ToUpper(namespace)
	return Credentials{}, fmt.Errorf(
		"missing credentials for namespace %q: set %s_ACCESS_KEY and %s_SECRET_KEY, or provide a profile",
		namespace, ns, ns)
}

func (r *Resolver) fromProfile(ctx context.Context, profile string) (Credentials, bool) {
	if profile == "" {
		profile = r.env["AWS_PROFILE"]
	}
	if profile == "" {
		return Credentials{}, false
	}

	shared, err := awsconfig.LoadSharedConfigProfile(ctx, profile)
	if err != nil {
		return Credentials{}, false
	}
	creds := shared.Credentials
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return Credentials{}, false
	}
	return Credentials{
		AccessKey:    creds.AccessKeyID,
		SecretKey:    creds.SecretAccessKey,
		SessionToken: creds.SessionToken,
	}, true
}

func (r *Resolver) fromNamespace(namespace string) (Credentials, bool) {
	ns := strings.ToUpper(namespace)
	ak := r.first(ns+"_ACCESS_KEY", ns+"_ACCESS_KEY_ID")
	sk := r.first(ns+"_SECRET_KEY", ns+"_SECRET_ACCESS_KEY")
	if ak == "" || sk == "" {
		return Credentials{}, false
	}
	return Credentials{
		AccessKey:    ak,
		SecretKey:    sk,
		SessionToken: r.env[ns+"_SESSION_TOKEN"],
	}, true
}

func (r *Resolver) fromAWSEnv() (Credentials, bool) {
	ak := r.first("AWS_ACCESS_KEY_ID", "AWS_ACCESS_KEY")
	sk := r.first("AWS_SECRET_ACCESS_KEY", "AWS_SECRET_KEY")
	if ak == "" || sk == "" {
		return Credentials{}, false
	}
	return Credentials{
		AccessKey:    ak,
		SecretKey:    sk,
		SessionToken: r.env["AWS_SESSION_TOKEN"],
	}, true
}

func (r *Resolver) first(keys ...string) string {
	for _, k := range keys {
		if v := r.env[k]; v != "" {
			return v
		}
	}
	return ""
}
