// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/rs/cors"

	"coreason/conductor/artifacts"
	"coreason/conductor/audit"
	"coreason/conductor/budget"
	"coreason/conductor/config"
	"coreason/conductor/execution"
	"coreason/conductor/identity"
	"coreason/conductor/manifest"
	"coreason/conductor/policy"
	"coreason/conductor/seal"
	"coreason/conductor/shared/logger"
	"coreason/conductor/vault"
)

// Run bootstraps the Conductor: resolve configuration, construct every
// port, wire the gateway, and serve. Backend ping failures at startup
// are logged but never fatal; readiness reports them instead.
func Run() {
	log.Println("Starting Conductor...")

	ctx := context.Background()
	lg := logger.New("gateway")

	secrets := buildSecretStore(ctx, lg)
	settings := config.Load(config.WithSecretStore(secrets))

	validator := identity.NewJWTValidator([]byte(settings.JWTSecret),
		identity.WithAudience(settings.AuthAudience),
		identity.WithIssuer(settings.AuthDomain),
	)

	ledger, err := budget.NewRedisLedger(settings.RedisURL, budget.Limits{
		GlobalDailyCapUSD:  settings.GlobalDailyCapUSD,
		ProjectDailyCapUSD: settings.ProjectDailyCapUSD,
		UserDailyCapUSD:    settings.UserDailyCapUSD,
	})
	if err != nil {
		if ledger == nil {
			log.Fatalf("Failed to initialize budget ledger: %v", err)
		}
		lg.Warn(ctx, "Budget ledger unreachable at startup", map[string]interface{}{
			"error": err.Error(),
		})
	}

	auditor, err := audit.NewPostgresLogger(settings.AuditDatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize audit logger: %v", err)
	}

	manifests, err := manifest.NewValidator()
	if err != nil {
		log.Fatalf("Failed to compile manifest schema: %v", err)
	}

	sealer, err := seal.NewTrustAnchor([]byte(settings.SealingKey))
	if err != nil {
		log.Fatalf("Failed to initialize trust anchor: %v", err)
	}

	var gatekeeper policy.Gatekeeper
	if settings.PolicyEnforcement {
		gatekeeper = policy.NewRuleGatekeeper()
	}

	var artifactStore artifacts.Store
	if settings.ArtifactBucket != "" {
		store, err := artifacts.NewS3Store(ctx, settings.ArtifactBucket, settings.ArtifactRegion)
		if err != nil {
			lg.Warn(ctx, "Artifact store unavailable, publish will not persist artifacts", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			artifactStore = store
		}
	}

	server := NewServer(Dependencies{
		Logger:     lg,
		Identity:   validator,
		Gatekeeper: gatekeeper,
		Budget:     ledger,
		Auditor:    auditor,
		Runtime:    execution.NewClient(settings.RuntimeEndpoint, 60*time.Second),
		Manifests:  manifests,
		Sealer:     sealer,
		Artifacts:  artifactStore,
		Secrets:    secrets,
	})
	defer server.Close()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	handler := c.Handler(server.Router())

	log.Printf("Conductor listening on port %s", settings.Port)
	log.Fatal(http.ListenAndServe(":"+settings.Port, handler))
}

// buildSecretStore picks AWS Secrets Manager when configured for it,
// falling back to environment variables otherwise.
func buildSecretStore(ctx context.Context, lg *logger.Logger) vault.SecretsManager {
	if os.Getenv("SECRETS_BACKEND") == "aws" || os.Getenv("AWS_SECRETS_PREFIX") != "" {
		store, err := vault.NewAWSSecretsManager(ctx, vault.AWSSecretsManagerOptions{
			Region: os.Getenv("AWS_REGION"),
			Prefix: os.Getenv("AWS_SECRETS_PREFIX"),
		})
		if err == nil {
			return store
		}
		lg.Warn(ctx, "AWS secret store unavailable, falling back to env", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return vault.NewEnvSecretsManager("")
}
