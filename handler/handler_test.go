package handler

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mouleshgs/onboardX/config"
	"github.com/mouleshgs/onboardX/middleware"
	"github.com/mouleshgs/onboardX/service"
)

const (
	testVendorEmail = "vendor@acme.com"
	testDistEmail   = "dist@partner.com"
)

// testServer wires the real service stack over local storage with the
// same routes main registers.
type testServer struct {
	router   *gin.Engine
	registry *service.Registry
	cfg      *config.Config

	vendorToken string
	distToken   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Storage: config.StorageConfig{LocalRoot: t.TempDir(), TimeoutSeconds: 5},
		Signing: config.SigningConfig{KeysDir: t.TempDir()},
		Onboarding: config.OnboardingConfig{
			CourseURL:        "https://learn.example.com/onboarding",
			DashboardURL:     "https://dash.example.com",
			AccessExpireDays: 30,
		},
		Notify:    config.NotifyConfig{TimeoutSeconds: 5},
		Assistant: config.AssistantConfig{TimeoutSeconds: 5},
		Auth:      config.AuthConfig{JWTSecret: "test-secret", TokenExpireHours: 1},
		Users: []config.User{
			{Email: testVendorEmail, Password: "vendor-pass", Role: middleware.RoleVendor, VendorID: "v1"},
			{Email: testDistEmail, Password: "dist-pass", Role: middleware.RoleDistributor},
		},
	}

	local, err := service.NewLocalStore(cfg.Storage.LocalRoot)
	if err != nil {
		t.Fatal(err)
	}
	keys := service.NewKeyStore(cfg.Signing.KeysDir)
	registry := service.NewRegistry()
	resolver := service.NewResolver(nil, local, 5*time.Second)
	writer := service.NewWriter(nil, local, 5*time.Second)
	notifier := service.NewNotifier(&cfg.Notify)
	provisioner := service.NewProvisioner(registry, notifier,
		cfg.Onboarding.CourseURL, cfg.Onboarding.DashboardURL,
		time.Duration(cfg.Onboarding.AccessExpireDays)*24*time.Hour)
	lifecycle := service.NewLifecycle(registry, resolver, service.NewSigner(keys), writer, provisioner)
	notifications := service.NewNotificationStore()
	assistant := service.NewAssistant(&cfg.Assistant)

	authHandler := NewAuthHandler(cfg)
	contractHandler := NewContractHandler(registry, lifecycle, resolver, provisioner, notifications, keys)
	notificationHandler := NewNotificationHandler(notifications)
	assistantHandler := NewAssistantHandler(assistant)

	router := gin.New()
	api := router.Group("/api")
	api.POST("/login", authHandler.Login)
	api.GET("/public-key", contractHandler.PublicKey)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	protected.GET("/me", authHandler.GetCurrentUser)
	protected.POST("/upload", middleware.RequireRole(middleware.RoleVendor), contractHandler.Upload)
	protected.GET("/contracts", contractHandler.List)
	protected.GET("/contract/:id", contractHandler.Get)
	protected.GET("/contract/:id/file", contractHandler.File)
	protected.POST("/sign", contractHandler.Sign)
	protected.GET("/contract/:id/access", contractHandler.Access)
	protected.POST("/contract/:id/event", contractHandler.PostEvent)
	protected.POST("/contract/:id/nudge", contractHandler.Nudge)
	protected.GET("/notifications", notificationHandler.List)
	protected.POST("/notifications/mark-read", notificationHandler.MarkRead)
	protected.POST("/assistant", assistantHandler.Query)

	vendorToken, _, err := middleware.GenerateToken(testVendorEmail, middleware.RoleVendor, &cfg.Auth)
	if err != nil {
		t.Fatal(err)
	}
	distToken, _, err := middleware.GenerateToken(testDistEmail, middleware.RoleDistributor, &cfg.Auth)
	if err != nil {
		t.Fatal(err)
	}

	return &testServer{
		router:      router,
		registry:    registry,
		cfg:         cfg,
		vendorToken: vendorToken,
		distToken:   distToken,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body == nil {
		reader = &bytes.Buffer{}
	} else {
		reader = body
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, method, path, token, bytes.NewBufferString(body), "application/json")
}

// uploadContract posts a generated PDF as the vendor and returns the
// response recorder.
func (s *testServer) uploadContract(t *testing.T, filename, assignee string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(buildTestPDF(t, 1)); err != nil {
		t.Fatal(err)
	}
	if err := mw.WriteField("distributor_email", assignee); err != nil {
		t.Fatal(err)
	}
	if err := mw.WriteField("vendor_id", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	return s.do(t, http.MethodPost, "/api/upload", s.vendorToken, &buf, mw.FormDataContentType())
}

// buildTestPDF emits a minimal but well-formed PDF with the given page
// count, including a correct cross-reference table.
func buildTestPDF(t *testing.T, pages int) []byte {
	t.Helper()

	var buf bytes.Buffer
	var offsets []int

	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := make([]string, 0, pages)
	for i := 0; i < pages; i++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", 3+2*i))
	}

	writeObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	writeObj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n",
		strings.Join(kids, " "), pages))

	for i := 0; i < pages; i++ {
		pageNum := 3 + 2*i
		contentNum := pageNum + 1
		writeObj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << >> /Contents %d 0 R >>\nendobj\n",
			pageNum, contentNum))
		content := "BT ET"
		writeObj(fmt.Sprintf("%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n",
			contentNum, len(content), content))
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefOffset)

	return buf.Bytes()
}

// signatureDataURL renders a small opaque PNG stroke the way the
// signature pad submits it.
func signatureDataURL(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 80, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 80; x++ {
			img.Set(x, y, color.White)
		}
	}
	for y := 12; y < 18; y++ {
		for x := 5; x < 75; x++ {
			img.Set(x, y, color.RGBA{20, 20, 60, 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode signature png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}
