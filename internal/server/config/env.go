package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dmitrijs2005/foliokeeper/internal/flagx"
)

const (
	envPrefix      = "FOLIO"
	envFileVar     = "FOLIO_ENV_FILE"
	defaultEnvFile = ".env"
)

// parseEnv overlays cfg with FOLIO_* environment variables. A dotenv file
// (FOLIO_ENV_FILE, default ".env") is loaded first when present; variables
// already set in the process environment win over the file.
func parseEnv(cfg *Config) {
	path := os.Getenv(envFileVar)
	if path == "" {
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	applyEnv(v, cfg)
}

func applyEnv(v *viper.Viper, cfg *Config) {
	strs := map[string]*string{
		"app_name":              &cfg.AppName,
		"app_version":           &cfg.AppVersion,
		"environment":           &cfg.Environment,
		"http_addr":             &cfg.EndpointAddrHTTP,
		"grpc_addr":             &cfg.EndpointAddrGRPC,
		"api_prefix":            &cfg.APIPrefix,
		"database_dsn":          &cfg.DatabaseDSN,
		"auth_mode":             &cfg.AuthMode,
		"jwt_secret_key":        &cfg.SecretKey,
		"jwt_algorithm":         &cfg.JWTAlgorithm,
		"api_key_header":        &cfg.APIKeyHeader,
		"cognito_region":        &cfg.CognitoRegion,
		"cognito_user_pool_id":  &cfg.CognitoUserPoolID,
		"cognito_app_client_id": &cfg.CognitoAppClientID,
		"cognito_jwks_url":      &cfg.CognitoJWKSURL,
		"cognito_issuer":        &cfg.CognitoIssuer,
		"aws_access_key_id":     &cfg.AWSAccessKeyID,
		"aws_secret_access_key": &cfg.AWSSecretAccessKey,
		"log_level":             &cfg.LogLevel,
		"log_format":            &cfg.LogFormat,
	}
	for key, dst := range strs {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	durations := map[string]*time.Duration{
		"db_conn_max_lifetime":  &cfg.DBConnMaxLifetime,
		"health_check_interval": &cfg.HealthCheckInterval,
		"access_token_ttl":      &cfg.AccessTokenValidityDuration,
		"refresh_token_ttl":     &cfg.RefreshTokenValidityDuration,
		"reset_token_ttl":       &cfg.ResetTokenValidityDuration,
		"jwks_cache_ttl":        &cfg.JWKSCacheTTL,
	}
	for key, dst := range durations {
		if v.IsSet(key) {
			*dst = v.GetDuration(key)
		}
	}

	ints := map[string]*int{
		"db_max_open_conns": &cfg.DBMaxOpenConns,
		"db_max_idle_conns": &cfg.DBMaxIdleConns,
	}
	for key, dst := range ints {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}

	if v.IsSet("expose_reset_token") {
		cfg.ExposeResetToken = v.GetBool("expose_reset_token")
	}

	lists := map[string]*[]string{
		"api_keys":     &cfg.APIKeys,
		"cors_origins": &cfg.CORSOrigins,
	}
	for key, dst := range lists {
		if v.IsSet(key) {
			*dst = flagx.SplitList(v.GetString(key))
		}
	}
}
