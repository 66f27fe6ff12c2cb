package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/akozhevina/tabletop-shop/api"
	"github.com/akozhevina/tabletop-shop/api/background"
	"github.com/akozhevina/tabletop-shop/cache"
	"github.com/akozhevina/tabletop-shop/config"
	"github.com/akozhevina/tabletop-shop/core/claims"
	"github.com/akozhevina/tabletop-shop/core/user"
	"github.com/akozhevina/tabletop-shop/database"
	"github.com/akozhevina/tabletop-shop/rate"
	"github.com/akozhevina/tabletop-shop/validate"
	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"golang.org/x/crypto/bcrypt"
)

var pgHost string

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not construct docker pool: %v\n", err)
		os.Exit(1)
	}

	resource, err := pool.Run("postgres", "15-alpine", []string{
		"POSTGRES_PASSWORD=postgres",
		"POSTGRES_DB=postgres",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not start postgres: %v\n", err)
		os.Exit(1)
	}

	pgHost = resource.GetHostPort("5432/tcp")

	if err := pool.Retry(func() error {
		db, err := database.Open(config.DB{
			User:       "postgres",
			Password:   "postgres",
			Host:       pgHost,
			Name:       "postgres",
			DisableTLS: true,
		})
		if err != nil {
			return err
		}
		defer db.Close()
		return database.StatusCheck(context.Background(), db)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "could not connect to postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := pool.Purge(resource); err != nil {
		fmt.Fprintf(os.Stderr, "could not purge postgres: %v\n", err)
	}

	os.Exit(code)
}

type TestEnv struct {
	DB     *sqlx.DB
	Server *httptest.Server
	URL    string

	AdminEmail string
	AdminPass  string
	UserEmail  string
	UserPass   string
	UserID     string

	Paypal        *mockPaypal
	Stripe        *mockStripe
	WebhookSecret string

	client *http.Client
}

// NewTestEnv brings up the full API against a dedicated database, with the
// payment providers replaced by local mocks.
func NewTestEnv(t *testing.T, dbName string) (*TestEnv, error) {
	t.Helper()

	admin, err := database.Open(config.DB{
		User:       "postgres",
		Password:   "postgres",
		Host:       pgHost,
		Name:       "postgres",
		DisableTLS: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening admin connection: %w", err)
	}
	defer admin.Close()

	if _, err := admin.Exec("CREATE DATABASE " + dbName); err != nil {
		return nil, fmt.Errorf("creating database %s: %w", dbName, err)
	}

	db, err := database.Open(config.DB{
		User:       "postgres",
		Password:   "postgres",
		Host:       pgHost,
		Name:       dbName,
		DisableTLS: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening test connection: %w", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrating: %w", err)
	}

	env := &TestEnv{
		DB:            db,
		AdminEmail:    "admin@example.com",
		AdminPass:     "adminpass1",
		UserEmail:     "user@example.com",
		UserPass:      "userpass1",
		WebhookSecret: "whsec_testsecret",
	}

	env.UserID, err = seedUsers(db, env)
	if err != nil {
		return nil, fmt.Errorf("seeding users: %w", err)
	}

	env.Paypal = &mockPaypal{}
	ppSrv := httptest.NewServer(env.Paypal.handle())
	t.Cleanup(ppSrv.Close)

	pp, err := paypal.NewClient("test-client", "test-secret", ppSrv.URL)
	if err != nil {
		return nil, fmt.Errorf("building paypal client: %w", err)
	}

	env.Stripe = &mockStripe{}
	stSrv := httptest.NewServer(env.Stripe.handle())
	t.Cleanup(stSrv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL: stripe.String(stSrv.URL + "/v1"),
	})
	strp := &stripecl.API{}
	strp.Init("sk_test_key", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if !testing.Verbose() {
		logger.SetOutput(io.Discard)
	}

	session := scs.New()
	session.Lifetime = time.Hour

	mux := api.APIMux(api.APIConfig{
		Log:         logger,
		DB:          db,
		Session:     session,
		Background:  background.New(logger),
		Cache:       cache.NewMemory(),
		AuthLimiter: rate.NewLimiter(100, 60, 100),
		Paypal:      pp,
		Stripe:      strp,
		StripeCfg: config.Stripe{
			WebhookSecret: env.WebhookSecret,
			SuccessURL:    "http://localhost/success",
			CancelURL:     "http://localhost/canceled",
		},
	})

	env.Server = httptest.NewServer(mux)
	t.Cleanup(env.Server.Close)
	env.URL = env.Server.URL

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("building cookie jar: %w", err)
	}
	env.client = &http.Client{Jar: jar}

	return env, nil
}

func seedUsers(db *sqlx.DB, env *TestEnv) (string, error) {
	ctx := context.Background()
	now := time.Now().UTC()

	adminHash, err := bcrypt.GenerateFromPassword([]byte(env.AdminPass), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	if err := user.Create(ctx, db, user.User{
		ID:           validate.GenerateID(),
		Name:         "Admin",
		Email:        env.AdminEmail,
		Role:         claims.RoleAdmin,
		PasswordHash: adminHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		return "", err
	}

	userHash, err := bcrypt.GenerateFromPassword([]byte(env.UserPass), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	userID := validate.GenerateID()
	if err := user.Create(ctx, db, user.User{
		ID:           userID,
		Name:         "User",
		Email:        env.UserEmail,
		Role:         claims.RoleUser,
		PasswordHash: userHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		return "", err
	}

	return userID, nil
}

// Client returns the shared http client. It keeps cookies, so the session
// carries over between requests like a browser would.
func (te *TestEnv) Client() *http.Client {
	return te.client
}

func (te *TestEnv) Login(email, password string) error {
	body, err := json.Marshal(user.UserLogin{Email: email, Password: password})
	if err != nil {
		return err
	}

	w, err := te.client.Post(te.URL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed: status code %s", w.Status)
	}
	return nil
}

func (te *TestEnv) Logout() error {
	w, err := te.client.Post(te.URL+"/auth/logout", "application/json", nil)
	if err != nil {
		return err
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK && w.StatusCode != http.StatusNoContent {
		return fmt.Errorf("logout failed: status code %s", w.Status)
	}
	return nil
}

// do sends a JSON request through the shared client and decodes the reply
// into out when a pointer is given.
func (te *TestEnv) do(t *testing.T, method, path string, body any, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}

	r, err := http.NewRequest(method, te.URL+path, &buf)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	r.Header.Set("Content-Type", "application/json")

	w, err := te.client.Do(r)
	if err != nil {
		t.Fatalf("sending %s %s: %v", method, path, err)
	}
	defer w.Body.Close()

	if out != nil {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s response: %v", method, path, err)
		}
	}
	return w
}
