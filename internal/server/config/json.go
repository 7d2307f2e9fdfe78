package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/foliokeeper/internal/flagx"
	"github.com/dmitrijs2005/foliokeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept
// "30m" style strings or integer nanoseconds.
type JsonConfig struct {
	AppName                      string         `json:"app_name"`
	AppVersion                   string         `json:"app_version"`
	Environment                  string         `json:"environment"`
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	APIPrefix                    string         `json:"api_prefix"`
	CORSOrigins                  []string       `json:"cors_origins"`
	DatabaseDSN                  string         `json:"database_dsn"`
	DBMaxOpenConns               int            `json:"db_max_open_conns"`
	DBMaxIdleConns               int            `json:"db_max_idle_conns"`
	DBConnMaxLifetime            timex.Duration `json:"db_conn_max_lifetime"`
	HealthCheckInterval          timex.Duration `json:"health_check_interval"`
	AuthMode                     string         `json:"auth_mode"`
	SecretKey                    string         `json:"secret_key"`
	JWTAlgorithm                 string         `json:"jwt_algorithm"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	ResetTokenValidityDuration   timex.Duration `json:"reset_token_validity_duration"`
	ExposeResetToken             bool           `json:"expose_reset_token"`
	APIKeyHeader                 string         `json:"api_key_header"`
	APIKeys                      []string       `json:"api_keys"`
	CognitoRegion                string         `json:"cognito_region"`
	CognitoUserPoolID            string         `json:"cognito_user_pool_id"`
	CognitoAppClientID           string         `json:"cognito_app_client_id"`
	CognitoJWKSURL               string         `json:"cognito_jwks_url"`
	CognitoIssuer                string         `json:"cognito_issuer"`
	JWKSCacheTTL                 timex.Duration `json:"jwks_cache_ttl"`
	AWSAccessKeyID               string         `json:"aws_access_key_id"`
	AWSSecretAccessKey           string         `json:"aws_secret_access_key"`
	LogLevel                     string         `json:"log_level"`
	LogFormat                    string         `json:"log_format"`
}

// parseJson overlays cfg with the file named by -c / -config. Keys missing
// from the file keep their current values. Read or decode errors panic.
func parseJson(cfg *Config) {
	path := flagx.ConfigFile(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	jc := toJson(cfg)
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}
	fromJson(&jc, cfg)
}

func toJson(c *Config) JsonConfig {
	return JsonConfig{
		AppName:                      c.AppName,
		AppVersion:                   c.AppVersion,
		Environment:                  c.Environment,
		EndpointAddrHTTP:             c.EndpointAddrHTTP,
		EndpointAddrGRPC:             c.EndpointAddrGRPC,
		APIPrefix:                    c.APIPrefix,
		CORSOrigins:                  c.CORSOrigins,
		DatabaseDSN:                  c.DatabaseDSN,
		DBMaxOpenConns:               c.DBMaxOpenConns,
		DBMaxIdleConns:               c.DBMaxIdleConns,
		DBConnMaxLifetime:            timex.Duration{Duration: c.DBConnMaxLifetime},
		HealthCheckInterval:          timex.Duration{Duration: c.HealthCheckInterval},
		AuthMode:                     c.AuthMode,
		SecretKey:                    c.SecretKey,
		JWTAlgorithm:                 c.JWTAlgorithm,
		AccessTokenValidityDuration:  timex.Duration{Duration: c.AccessTokenValidityDuration},
		RefreshTokenValidityDuration: timex.Duration{Duration: c.RefreshTokenValidityDuration},
		ResetTokenValidityDuration:   timex.Duration{Duration: c.ResetTokenValidityDuration},
		ExposeResetToken:             c.ExposeResetToken,
		APIKeyHeader:                 c.APIKeyHeader,
		APIKeys:                      c.APIKeys,
		CognitoRegion:                c.CognitoRegion,
		CognitoUserPoolID:            c.CognitoUserPoolID,
		CognitoAppClientID:           c.CognitoAppClientID,
		CognitoJWKSURL:               c.CognitoJWKSURL,
		CognitoIssuer:                c.CognitoIssuer,
		JWKSCacheTTL:                 timex.Duration{Duration: c.JWKSCacheTTL},
		AWSAccessKeyID:               c.AWSAccessKeyID,
		AWSSecretAccessKey:           c.AWSSecretAccessKey,
		LogLevel:                     c.LogLevel,
		LogFormat:                    c.LogFormat,
	}
}

func fromJson(jc *JsonConfig, c *Config) {
	c.AppName = jc.AppName
	c.AppVersion = jc.AppVersion
	c.Environment = jc.Environment
	c.EndpointAddrHTTP = jc.EndpointAddrHTTP
	c.EndpointAddrGRPC = jc.EndpointAddrGRPC
	c.APIPrefix = jc.APIPrefix
	c.CORSOrigins = jc.CORSOrigins
	c.DatabaseDSN = jc.DatabaseDSN
	c.DBMaxOpenConns = jc.DBMaxOpenConns
	c.DBMaxIdleConns = jc.DBMaxIdleConns
	c.DBConnMaxLifetime = jc.DBConnMaxLifetime.Duration
	c.HealthCheckInterval = jc.HealthCheckInterval.Duration
	c.AuthMode = jc.AuthMode
	c.SecretKey = jc.SecretKey
	c.JWTAlgorithm = jc.JWTAlgorithm
	c.AccessTokenValidityDuration = jc.AccessTokenValidityDuration.Duration
	c.RefreshTokenValidityDuration = jc.RefreshTokenValidityDuration.Duration
	c.ResetTokenValidityDuration = jc.ResetTokenValidityDuration.Duration
	c.ExposeResetToken = jc.ExposeResetToken
	c.APIKeyHeader = jc.APIKeyHeader
	c.APIKeys = jc.APIKeys
	c.CognitoRegion = jc.CognitoRegion
	c.CognitoUserPoolID = jc.CognitoUserPoolID
	c.CognitoAppClientID = jc.CognitoAppClientID
	c.CognitoJWKSURL = jc.CognitoJWKSURL
	c.CognitoIssuer = jc.CognitoIssuer
	c.JWKSCacheTTL = jc.JWKSCacheTTL.Duration
	c.AWSAccessKeyID = jc.AWSAccessKeyID
	c.AWSSecretAccessKey = jc.AWSSecretAccessKey
	c.LogLevel = jc.LogLevel
	c.LogFormat = jc.LogFormat
}
