package config

import "time"

type Config struct {
	Web    Web
	Cors   Cors
	DB     DB
	Redis  Redis
	AMQP   AMQP
	Rate   Rate
	Paypal Paypal
	Stripe Stripe
	Oauth  Oauth
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type Cors struct {
	Origin string `conf:"default:"`
}

type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string `conf:"default:localhost:5432"`
	Name       string `conf:"default:shop"`
	DisableTLS bool   `conf:"default:true"`
}

// Redis configures the catalog read cache. With an empty address the
// server falls back to the in-process cache.
type Redis struct {
	Address  string        `conf:"default:"`
	Password string        `conf:"default:,mask"`
	DB       int           `conf:"default:0"`
	TTL      time.Duration `conf:"default:1m"`
}

// AMQP configures the order event publisher. Empty URL disables it.
type AMQP struct {
	URL      string `conf:"default:"`
	Exchange string `conf:"default:shop.events"`
}

type Rate struct {
	Burst    int           `conf:"default:5"`
	Expiry   int           `conf:"default:60"`
	Interval time.Duration `conf:"default:1s"`
}

type Paypal struct {
	ClientID string `conf:"default:"`
	Secret   string `conf:"default:,mask"`
	URL      string `conf:"default:https://api.sandbox.paypal.com"`
}

type Stripe struct {
	APISecret     string `conf:"default:,mask"`
	WebhookSecret string `conf:"default:,mask"`
	SuccessURL    string `conf:"default:http://localhost:3000/success"`
	CancelURL     string `conf:"default:http://localhost:3000/canceled"`
}

type OauthProvider struct {
	Client      string `conf:"default:"`
	Secret      string `conf:"default:,mask"`
	URL         string `conf:"default:https://accounts.google.com"`
	RedirectURL string `conf:"default:http://localhost:8000/auth/oauth-callback/google"`
}

type Oauth struct {
	DiscoveryTimeout time.Duration `conf:"default:30s"`
	LoginRedirectURL string        `conf:"default:http://localhost:3000"`
	Google           OauthProvider
}
