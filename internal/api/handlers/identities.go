package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facepos/internal/enroll"
	"github.com/your-org/facepos/internal/models"
	"github.com/your-org/facepos/internal/signature"
	"github.com/your-org/facepos/internal/storage"
	"github.com/your-org/facepos/pkg/dto"
)

type IdentityHandler struct {
	db       *storage.PostgresStore
	minio    *storage.MinIOStore
	enroller *enroll.Service

	searchThreshold float64
	searchLimit     int

	// SignatureFn extracts a face signature from image bytes. Set after
	// the recognition models are loaded.
	SignatureFn func(imageData []byte) (signature.Signature, error)
}

func NewIdentityHandler(db *storage.PostgresStore, minio *storage.MinIOStore, enroller *enroll.Service,
	searchThreshold float64, searchLimit int) *IdentityHandler {
	return &IdentityHandler{
		db:              db,
		minio:           minio,
		enroller:        enroller,
		searchThreshold: searchThreshold,
		searchLimit:     searchLimit,
	}
}

// Enroll registers a new identity from the enrollment form: profile
// fields, an optional encoded signature from the capture session, and
// an optional thumbnail image part.
func (h *IdentityHandler) Enroll(c *gin.Context) {
	var req dto.EnrollRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var sig signature.Signature
	if req.Signature != "" {
		var err error
		sig, err = signature.Decode(req.Signature)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed signature"})
			return
		}
	}

	var thumbnail []byte
	if file, _, err := c.Request.FormFile("thumbnail"); err == nil {
		thumbnail, err = io.ReadAll(file)
		file.Close()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read thumbnail failed"})
			return
		}
	}

	profile := models.Profile{DisplayName: req.DisplayName, Email: req.Email, Phone: req.Phone}
	ident, err := h.enroller.Submit(c.Request.Context(), profile, sig, thumbnail)
	switch {
	case errors.Is(err, enroll.ErrInvalidProfile):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, storage.ErrDuplicateIdentity):
		c.JSON(http.StatusConflict, gin.H{"error": "email already enrolled"})
		return
	case errors.Is(err, enroll.ErrThumbnailUpload):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, identityResponse(ident))
}

func (h *IdentityHandler) List(c *gin.Context) {
	idents, err := h.db.ListIdentities(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.IdentityResponse, 0, len(idents))
	for i := range idents {
		resp = append(resp, identityResponse(&idents[i]))
	}
	c.JSON(http.StatusOK, gin.H{"identities": resp, "total": len(resp)})
}

func (h *IdentityHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity id"})
		return
	}

	ident, err := h.db.GetIdentity(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ident == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "identity not found"})
		return
	}

	c.JSON(http.StatusOK, identityResponse(ident))
}

func (h *IdentityHandler) UpdateContact(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity id"})
		return
	}

	var req dto.UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile := models.Profile{DisplayName: req.DisplayName, Email: req.Email, Phone: req.Phone}
	err = h.db.UpdateContact(c.Request.Context(), id, profile)
	switch {
	case errors.Is(err, storage.ErrDuplicateIdentity):
		c.JSON(http.StatusConflict, gin.H{"error": "email already enrolled"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ident, err := h.db.GetIdentity(c.Request.Context(), id)
	if err != nil || ident == nil {
		c.JSON(http.StatusOK, gin.H{"status": "updated"})
		return
	}
	c.JSON(http.StatusOK, identityResponse(ident))
}

// Delete removes an identity and its thumbnail.
func (h *IdentityHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity id"})
		return
	}

	thumbnailKey, err := h.db.DeleteIdentity(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if thumbnailKey != "" {
		// Best effort, the record is already gone.
		_ = h.minio.DeleteThumbnail(c.Request.Context(), thumbnailKey)
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *IdentityHandler) Thumbnail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity id"})
		return
	}

	ident, err := h.db.GetIdentity(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ident == nil || ident.ThumbnailKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "thumbnail not found"})
		return
	}

	data, err := h.minio.GetThumbnail(c.Request.Context(), ident.ThumbnailKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

// Search runs a server-side similarity search from an uploaded image.
func (h *IdentityHandler) Search(c *gin.Context) {
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	if h.SignatureFn == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "recognition models not loaded"})
		return
	}

	sig, err := h.SignatureFn(imageData)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "failed to extract face: " + err.Error()})
		return
	}

	matches, err := h.db.SearchIdentities(c.Request.Context(), sig, h.searchThreshold, h.searchLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	results := make([]dto.SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, dto.SearchResult{
			IdentityID:  m.IdentityID,
			DisplayName: m.DisplayName,
			Score:       m.Score,
		})
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "total": len(results)})
}

func identityResponse(ident *models.Identity) dto.IdentityResponse {
	resp := dto.IdentityResponse{
		ID:            ident.ID,
		DisplayName:   ident.DisplayName,
		Email:         ident.Email,
		Phone:         ident.Phone,
		HasBiometrics: ident.FaceData != "",
		EnrolledAt:    ident.EnrolledAt.Format("2006-01-02T15:04:05Z"),
	}
	if ident.ThumbnailKey != "" {
		resp.ThumbnailURL = "/v1/identities/" + ident.ID.String() + "/thumbnail"
	}
	if ident.LastRecognizedAt != nil {
		resp.LastRecognizedAt = ident.LastRecognizedAt.Format("2006-01-02T15:04:05Z")
	}
	return resp
}
