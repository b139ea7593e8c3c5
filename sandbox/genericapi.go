package sandbox

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// GenericApiConfig configures the out-of-process execution backend.
type GenericApiConfig struct {
	// URL is the websocket endpoint of the execution service
	// (ws:// or wss://).
	URL string

	// Secret, when non-empty, signs a short-lived HS256 bearer token sent
	// with the dial request.
	Secret []byte

	// Subject is the token subject claim identifying this client.
	Subject string

	// TokenTTL bounds the bearer token lifetime. Zero means one minute.
	TokenTTL time.Duration
}

// GenericApi delegates execution to an external service over a websocket.
// Each request is one JSON frame carrying a unique id, argv, and workdir;
// the service answers with a frame of the same id. Confinement is the
// service's responsibility, which makes this backend usable from platforms
// with no local sandboxing facility.
type GenericApi struct {
	cfg GenericApiConfig
}

// NewGenericApi returns a backend talking to the service at cfg.URL.
func NewGenericApi(cfg GenericApiConfig) *GenericApi {
	return &GenericApi{cfg: cfg}
}

// apiExecFrame is the request frame sent to the service.
type apiExecFrame struct {
	ID        string   `json:"id"`
	Argv      []string `json:"argv"`
	Workdir   string   `json:"workdir,omitempty"`
	TimeoutMS int64    `json:"timeout_ms,omitempty"`
}

// apiResultFrame is the response frame. Error carries a service-side spawn
// failure; the other fields mirror ExecResult.
type apiResultFrame struct {
	ID         string `json:"id"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exit_code"`
	DurationMS int64  `json:"duration_ms"`
	TimedOut   bool   `json:"timed_out,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (*GenericApi) Name() string { return "generic-api" }

func (g *GenericApi) Available() bool {
	u, err := url.Parse(g.cfg.URL)
	return err == nil && (u.Scheme == "ws" || u.Scheme == "wss")
}

// Prepare is a no-op: the service confines the child on its own host.
func (*GenericApi) Prepare(string) error { return nil }

// Run dials the service, sends the exec frame, and waits for the frame
// answering this request's id. Frames for other ids are discarded.
func (g *GenericApi) Run(ctx context.Context, req ExecRequest) (*ExecResult, error) {
	opts := &websocket.DialOptions{}
	if len(g.cfg.Secret) > 0 {
		token, err := g.bearerToken()
		if err != nil {
			return nil, fmt.Errorf("%w: sign token: %v", ErrConfinementSetup, err)
		}
		opts.HTTPHeader = http.Header{"Authorization": {"Bearer " + token}}
	}

	conn, _, err := websocket.Dial(ctx, g.cfg.URL, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrSpawn, g.cfg.URL, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	frame := apiExecFrame{
		ID:      id,
		Argv:    req.Argv,
		Workdir: req.Workdir,
	}
	if req.Timeout > 0 {
		frame.TimeoutMS = req.Timeout.Milliseconds()
	}
	if err := wsjson.Write(ctx, conn, frame); err != nil {
		return nil, fmt.Errorf("%w: send request: %v", ErrSpawn, err)
	}

	for {
		var res apiResultFrame
		if err := wsjson.Read(ctx, conn, &res); err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return &ExecResult{ExitCode: TimeoutExitCode, TimedOut: true}, nil
			}
			return nil, fmt.Errorf("%w: read response: %v", ErrSpawn, err)
		}
		if res.ID != id {
			continue
		}
		if res.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrSpawn, res.Error)
		}
		out := &ExecResult{
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
			ExitCode: res.ExitCode,
			Duration: time.Duration(res.DurationMS) * time.Millisecond,
			TimedOut: res.TimedOut,
		}
		if res.TimedOut {
			out.ExitCode = TimeoutExitCode
		}
		return out, nil
	}
}

// bearerToken signs a short-lived HS256 token for the dial request.
func (g *GenericApi) bearerToken() (string, error) {
	ttl := g.cfg.TokenTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   g.cfg.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.cfg.Secret)
}
