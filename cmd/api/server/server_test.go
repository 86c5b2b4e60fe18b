package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"user-image-service/cmd/api/di"
	ginhandler "user-image-service/internal/adapter/gin/handler"
	"user-image-service/internal/config"
)

// UserAPITestSuite runs the REST API and the gRPC health service over a real
// sqlite database and image directory.
type UserAPITestSuite struct {
	suite.Suite
	staticRoot string
	server     *Server
	http       *httptest.Server
	grpcConn   *grpc.ClientConn
}

func (s *UserAPITestSuite) SetupTest() {
	dir := s.T().TempDir()
	s.staticRoot = filepath.Join(dir, "wwwroot")

	cfg := &config.Config{
		DB: config.DatabaseConfig{
			Driver:      config.DriverSQLite,
			SQLitePath:  filepath.Join(dir, "users.db"),
			AutoMigrate: true,
		},
		App: config.AppConfig{
			GRPCPort:        "50051",
			HTTPPort:        "8080",
			ShutdownTimeout: 5 * time.Second,
			MaxUploadBytes:  1 << 20,
		},
		Storage:   config.StorageConfig{StaticRoot: s.staticRoot},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 10, BurstCapacity: 20},
		Logger:    config.LoggerConfig{Level: "info", Format: "console", OutputPath: "stdout"},
	}

	l := zaptest.NewLogger(s.T())
	container, err := di.NewContainer(cfg, l)
	s.Require().NoError(err)

	s.server = New(cfg, l, container)
	s.http = httptest.NewServer(s.server.HTTP.Handler)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = s.server.GRPC.Serve(lis) }()

	s.grpcConn, err = grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	s.Require().NoError(err)
}

func (s *UserAPITestSuite) TearDownTest() {
	_ = s.grpcConn.Close()
	s.http.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.NoError(s.server.Shutdown(ctx))
	s.NoError(s.server.Container.Close())
}

func (s *UserAPITestSuite) send(method, path string, fields map[string]string, fileName string, content []byte) *http.Response {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		s.Require().NoError(w.WriteField(k, v))
	}
	if fileName != "" {
		part, err := w.CreateFormFile("image", fileName)
		s.Require().NoError(err)
		_, err = part.Write(content)
		s.Require().NoError(err)
	}
	s.Require().NoError(w.Close())

	req, err := http.NewRequest(method, s.http.URL+path, body)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := s.http.Client().Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *UserAPITestSuite) do(method, path string) *http.Response {
	req, err := http.NewRequest(method, s.http.URL+path, nil)
	s.Require().NoError(err)
	resp, err := s.http.Client().Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *UserAPITestSuite) decodeUser(resp *http.Response) ginhandler.UserResponse {
	defer resp.Body.Close()
	var u ginhandler.UserResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&u))
	return u
}

func (s *UserAPITestSuite) imageFile(name string) string {
	return filepath.Join(s.staticRoot, "images", name)
}

func (s *UserAPITestSuite) TestUserLifecycle() {
	resp := s.send(http.MethodPost, "/v1/users", map[string]string{"name": "Alice", "email": "alice@x.com"}, "photo.jpg", []byte("0123456789"))
	s.Equal(http.StatusCreated, resp.StatusCode)
	created := s.decodeUser(resp)
	s.Equal(int64(1), created.ID)
	s.Require().NotNil(created.ImagePath)
	s.Regexp(`^[0-9a-f-]{36}_photo\.jpg$`, *created.ImagePath)

	info, err := os.Stat(s.imageFile(*created.ImagePath))
	s.Require().NoError(err)
	s.Equal(int64(10), info.Size())

	// Served from the static images route
	resp = s.do(http.MethodGet, created.ImageURL)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("0123456789", string(data))

	resp = s.send(http.MethodPut, "/v1/users/1", map[string]string{"name": "Alicia", "email": "alicia@x.com"}, "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	updated := s.decodeUser(resp)
	s.Equal("Alicia", updated.Name)
	s.Equal("alicia@x.com", updated.Email)
	s.Equal(*created.ImagePath, *updated.ImagePath)

	resp = s.send(http.MethodPut, "/v1/users/1", map[string]string{"name": "Alicia", "email": "alicia@x.com"}, "avatar.png", []byte("png"))
	s.Equal(http.StatusOK, resp.StatusCode)
	replaced := s.decodeUser(resp)
	s.NotEqual(*created.ImagePath, *replaced.ImagePath)
	s.NoFileExists(s.imageFile(*created.ImagePath))
	s.FileExists(s.imageFile(*replaced.ImagePath))

	resp = s.do(http.MethodDelete, "/v1/users/1")
	resp.Body.Close()
	s.Equal(http.StatusNoContent, resp.StatusCode)
	s.NoFileExists(s.imageFile(*replaced.ImagePath))

	resp = s.do(http.MethodGet, "/v1/users/1")
	resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)

	resp = s.do(http.MethodDelete, "/v1/users/1")
	resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *UserAPITestSuite) TestCreateWithoutImage() {
	resp := s.send(http.MethodPost, "/v1/users", map[string]string{"name": "Bob"}, "", nil)
	resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp = s.do(http.MethodGet, "/v1/users")
	defer resp.Body.Close()
	var list ginhandler.ListUsersResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&list))
	s.Empty(list.Users)
	s.NoDirExists(filepath.Join(s.staticRoot, "images"))
}

func (s *UserAPITestSuite) TestListUsers() {
	for i := 0; i < 3; i++ {
		resp := s.send(http.MethodPost, "/v1/users", map[string]string{"name": fmt.Sprintf("user-%d", i)}, "photo.jpg", []byte("x"))
		resp.Body.Close()
		s.Require().Equal(http.StatusCreated, resp.StatusCode)
	}

	resp := s.do(http.MethodGet, "/v1/users")
	defer resp.Body.Close()
	var list ginhandler.ListUsersResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&list))
	s.Require().Len(list.Users, 3)
	s.Equal("user-0", list.Users[0].Name)
}

func (s *UserAPITestSuite) TestHealth() {
	resp := s.do(http.MethodGet, "/health")
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	client := healthpb.NewHealthClient(s.grpcConn)
	got, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	s.Require().NoError(err)
	s.Equal(healthpb.HealthCheckResponse_SERVING, got.GetStatus())

	s.server.Container.Health.Shutdown()

	resp = s.do(http.MethodGet, "/health")
	resp.Body.Close()
	s.Equal(http.StatusServiceUnavailable, resp.StatusCode)

	got, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	s.Require().NoError(err)
	s.Equal(healthpb.HealthCheckResponse_NOT_SERVING, got.GetStatus())
}

// brokenListener fails every Accept, as a listener whose socket died would.
type brokenListener struct{}

func (brokenListener) Accept() (net.Conn, error) { return nil, errors.New("accept failed") }
func (brokenListener) Close() error              { return nil }
func (brokenListener) Addr() net.Addr            { return &net.TCPAddr{IP: net.IPv4zero} }

func (s *UserAPITestSuite) runServe(ctx context.Context, httpLis net.Listener) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.server.serve(ctx, bufconn.Listen(1<<20), httpLis) }()
	return errCh
}

func (s *UserAPITestSuite) TestServeStopsWhenOneServerFails() {
	errCh := s.runServe(context.Background(), brokenListener{})

	select {
	case err := <-errCh:
		s.Require().Error(err)
		s.Contains(err.Error(), "HTTP server: accept failed")
	case <-time.After(5 * time.Second):
		s.FailNow("serve kept running after the HTTP server failed")
	}
	s.False(s.server.Container.Health.Serving())
}

func (s *UserAPITestSuite) TestServeStopsOnCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := s.runServe(ctx, bufconn.Listen(1<<20))

	cancel()

	select {
	case err := <-errCh:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.FailNow("serve kept running after cancel")
	}
	s.False(s.server.Container.Health.Serving())
}

func TestUserAPITestSuite(t *testing.T) {
	suite.Run(t, new(UserAPITestSuite))
}
