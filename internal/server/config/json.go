package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Lifetimes use
// timex.Duration so both "15m" and integer nanoseconds are accepted.
// Absent fields leave the current value in place.
type JsonConfig struct {
	EndpointAddrHTTP   *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC   *string         `json:"endpoint_addr_grpc"`
	Storage            *string         `json:"storage"`
	DatabaseDSN        *string         `json:"database_dsn"`
	AccessTokenSecret  *string         `json:"access_token_secret"`
	RefreshTokenSecret *string         `json:"refresh_token_secret"`
	AccessTokenTTL     *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenTTL    *timex.Duration `json:"refresh_token_validity_duration"`
	OTPStore           *string         `json:"otp_store"`
	OTPTTL             *timex.Duration `json:"otp_ttl"`
	RedisAddr          *string         `json:"redis_addr"`
	RedisPassword      *string         `json:"redis_password"`
	RedisDB            *int            `json:"redis_db"`
	RedisPrefix        *string         `json:"redis_prefix"`
	SMTPHost           *string         `json:"smtp_host"`
	SMTPPort           *int            `json:"smtp_port"`
	SMTPUsername       *string         `json:"smtp_username"`
	SMTPPassword       *string         `json:"smtp_password"`
	SMTPTimeout        *timex.Duration `json:"smtp_timeout"`
	SMTPRequireTLS     *bool           `json:"smtp_require_tls"`
	MailFrom           *string         `json:"mail_from"`
	AppName            *string         `json:"app_name"`
	LogLevel           *string         `json:"log_level"`
}

// parseJSON loads the file named by -c or -config, if any, into config.
func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.Storage, c.Storage)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.AccessTokenSecret, c.AccessTokenSecret)
	setString(&config.RefreshTokenSecret, c.RefreshTokenSecret)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenTTL)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenTTL)
	setString(&config.OTPStore, c.OTPStore)
	setDuration(&config.OTPTTL, c.OTPTTL)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setInt(&config.RedisDB, c.RedisDB)
	setString(&config.RedisPrefix, c.RedisPrefix)
	setString(&config.SMTPHost, c.SMTPHost)
	setInt(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUsername, c.SMTPUsername)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setDuration(&config.SMTPTimeout, c.SMTPTimeout)
	if c.SMTPRequireTLS != nil {
		config.SMTPRequireTLS = *c.SMTPRequireTLS
	}
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.AppName, c.AppName)
	setString(&config.LogLevel, c.LogLevel)

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
