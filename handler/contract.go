package handler

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mouleshgs/onboardX/middleware"
	"github.com/mouleshgs/onboardX/model"
	"github.com/mouleshgs/onboardX/service"
)

const maxUploadSize = 20 << 20 // 20 MiB

// ContractHandler serves the contract lifecycle endpoints.
type ContractHandler struct {
	registry      *service.Registry
	lifecycle     *service.Lifecycle
	resolver      *service.Resolver
	access        *service.Provisioner
	notifications *service.NotificationStore
	keys          *service.KeyStore
}

func NewContractHandler(
	registry *service.Registry,
	lifecycle *service.Lifecycle,
	resolver *service.Resolver,
	access *service.Provisioner,
	notifications *service.NotificationStore,
	keys *service.KeyStore,
) *ContractHandler {
	return &ContractHandler{
		registry:      registry,
		lifecycle:     lifecycle,
		resolver:      resolver,
		access:        access,
		notifications: notifications,
		keys:          keys,
	}
}

// Upload handles contract file upload. Vendors only.
func (h *ContractHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	defer file.Close()

	if strings.ToLower(filepath.Ext(header.Filename)) != ".pdf" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only PDF files are allowed"})
		return
	}
	if header.Size > maxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large"})
		return
	}

	assignee := c.PostForm("distributor_email")
	if assignee == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "distributor_email is required"})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	contract, err := h.lifecycle.Upload(
		c.Request.Context(),
		c.PostForm("vendor_id"),
		middleware.GetEmail(c),
		assignee,
		header.Filename,
		data,
		"application/pdf",
	)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// List returns the contracts visible to the caller. Vendors see their
// own uploads (optionally filtered by the vendor query param),
// distributors only what is assigned to them.
func (h *ContractHandler) List(c *gin.Context) {
	email := middleware.GetEmail(c)

	var contracts []*model.Contract
	if middleware.GetRole(c) == middleware.RoleDistributor {
		contracts = h.registry.ListByAssignee(email)
	} else if vendor := c.Query("vendor"); vendor != "" {
		contracts = h.registry.ListByVendor(vendor)
	} else {
		contracts = h.registry.ListByVendor(email)
	}

	c.JSON(http.StatusOK, gin.H{"contracts": contracts})
}

// Get returns a single contract record.
func (h *ContractHandler) Get(c *gin.Context) {
	contract, ok := h.visibleContract(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, contract)
}

// File streams the contract's resolved bytes, forwarding upstream
// metadata headers. Content-Encoding is deliberately never forwarded
// so clients don't double-decode.
func (h *ContractHandler) File(c *gin.Context) {
	contract, ok := h.visibleContract(c)
	if !ok {
		return
	}

	data, info, err := h.resolver.Resolve(c.Request.Context(), contract.Locator)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if info.Disposition != "" {
		c.Header("Content-Disposition", info.Disposition)
	} else {
		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", contract.OriginalName))
	}
	if info.AcceptRanges != "" {
		c.Header("Accept-Ranges", info.AcceptRanges)
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	c.Data(http.StatusOK, contentType, data)
}

type SignRequest struct {
	ContractID       string `json:"contractId" binding:"required"`
	SignerName       string `json:"signerName" binding:"required"`
	SignatureDataURL string `json:"signatureDataUrl" binding:"required"`
}

// Sign runs the signing flow and returns the signature record plus the
// freshly provisioned access grant.
func (h *ContractHandler) Sign(c *gin.Context) {
	var req SignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing fields"})
		return
	}

	contract, err := h.lifecycle.Sign(c.Request.Context(), req.ContractID, req.SignerName, req.SignatureDataURL)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"signature": contract.Signature,
		"access":    contract.Access,
		"status":    contract.Status,
	})
}

// Access returns the access grant, generating it on first call.
// Pending contracts yield 403 so the UI can gate on it.
func (h *ContractHandler) Access(c *gin.Context) {
	if _, ok := h.visibleContract(c); !ok {
		return
	}

	grant, err := h.access.EnsureAccess(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, grant)
}

type EventRequest struct {
	Event string `json:"event" binding:"required"`
}

// PostEvent flips an engagement flag and returns the updated event set.
func (h *ContractHandler) PostEvent(c *gin.Context) {
	if _, ok := h.visibleContract(c); !ok {
		return
	}

	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing event"})
		return
	}
	if req.Event != model.EventSlackVisited && req.Event != model.EventNotionCompleted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown event"})
		return
	}

	contract, err := h.lifecycle.PostEvent(c.Request.Context(), c.Param("id"), req.Event)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": contract.Events, "access": contract.Access})
}

type NudgeRequest struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// Nudge appends a notification for the contract's assignee. When no
// message is given the server synthesizes one from the current
// lifecycle state.
func (h *ContractHandler) Nudge(c *gin.Context) {
	contract, ok := h.visibleContract(c)
	if !ok {
		return
	}

	var req NudgeRequest
	_ = c.ShouldBindJSON(&req)

	from := req.From
	if from == "" {
		from = middleware.GetEmail(c)
	}
	message := req.Message
	if message == "" {
		message = service.NudgeMessage(contract)
	}

	n := h.notifications.Append(model.Notification{
		ContractID: contract.ID,
		From:       from,
		To:         contract.AssignedToEmail,
		Message:    message,
	})
	c.JSON(http.StatusOK, n)
}

// PublicKey exposes the PEM signing public key so signature records
// can be verified externally.
func (h *ContractHandler) PublicKey(c *gin.Context) {
	pemKey, err := h.keys.PublicKeyPEM()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Signing keys unavailable"})
		return
	}
	c.Data(http.StatusOK, "application/x-pem-file", []byte(pemKey))
}

// visibleContract fetches the contract and enforces distributor
// visibility: distributors only see contracts assigned to them, and a
// hidden contract is indistinguishable from a missing one.
func (h *ContractHandler) visibleContract(c *gin.Context) (*model.Contract, bool) {
	contract, err := h.registry.Get(c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return nil, false
	}
	if middleware.GetRole(c) == middleware.RoleDistributor && contract.AssignedToEmail != middleware.GetEmail(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return nil, false
	}
	return contract, true
}
